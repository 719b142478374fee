package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"sealkit/sdk"
)

type rightsFlags struct {
	readOnly bool
}

func (r *rightsFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&r.readOnly, "read-only", false, "recipients may read but not forward or revoke")
}

func (r rightsFlags) recipients(ids []string) []sdk.Recipient {
	rights := sdk.DefaultRights()
	if r.readOnly {
		rights = sdk.RecipientRights{Read: true}
	}
	out := make([]sdk.Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, sdk.Recipient{ID: id, Rights: rights})
	}
	return out
}

func encryptCmd() *cobra.Command {
	var (
		to     []string
		rights rightsFlags
	)
	cmd := &cobra.Command{
		Use:   "encrypt <message>",
		Short: "Create a session for recipients and seal a message in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			sess, err := s.CreateEncryptionSession(ctx(cmd), rights.recipients(to), false)
			if err != nil {
				return err
			}
			msg, err := sess.EncryptMessage(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "session", sess.ID())
			fmt.Fprintln(out(cmd), msg)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&to, "to", nil, "user or group IDs to share with")
	rights.bind(cmd)
	return cmd
}

func decryptCmd() *cobra.Command {
	var groups bool
	cmd := &cobra.Command{
		Use:   "decrypt <message>",
		Short: "Open a sealed message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			sess, err := s.RetrieveEncryptionSessionFromMessage(ctx(cmd), args[0], true, groups)
			if err != nil {
				return err
			}
			plain, err := sess.DecryptMessage(ctx(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), plain)
			return nil
		},
	}
	cmd.Flags().BoolVar(&groups, "groups", true, "also look for the key through groups")
	return cmd
}

func encryptFileCmd() *cobra.Command {
	var (
		to     []string
		rights rightsFlags
	)
	cmd := &cobra.Command{
		Use:   "encrypt-file <path>",
		Short: "Seal a file next to the original with the " + sdk.SealedExtension + " extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			sess, err := s.CreateEncryptionSession(ctx(cmd), rights.recipients(to), false)
			if err != nil {
				return err
			}
			path, err := sess.EncryptFileFromPath(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s (session %s)\n", path, sess.ID())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&to, "to", nil, "user or group IDs to share with")
	rights.bind(cmd)
	return cmd
}

func decryptFileCmd() *cobra.Command {
	var groups bool
	cmd := &cobra.Command{
		Use:   "decrypt-file <path>",
		Short: "Open a sealed file into the same directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			sealed, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sess, err := s.RetrieveEncryptionSessionFromFile(ctx(cmd), sealed, true, groups)
			if err != nil {
				return err
			}
			path, err := sess.DecryptFileFromPath(ctx(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&groups, "groups", true, "also look for the key through groups")
	return cmd
}

func shareCmd() *cobra.Command {
	var rights rightsFlags
	cmd := &cobra.Command{
		Use:   "share <session> <id>...",
		Short: "Add recipients to a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			sess, err := s.RetrieveEncryptionSession(ctx(cmd), sdk.SessionID(args[0]), true, true)
			if err != nil {
				return err
			}
			res, err := sess.AddRecipients(ctx(cmd), rights.recipients(args[1:]))
			if err != nil {
				return err
			}
			printStatus(cmd, res)
			return nil
		},
	}
	rights.bind(cmd)
	return cmd
}

func revokeCmd() *cobra.Command {
	var all, others bool
	cmd := &cobra.Command{
		Use:   "revoke <session> [id]...",
		Short: "Remove recipients from a session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && others {
				return fmt.Errorf("--all and --others are exclusive")
			}
			if !all && !others && len(args) < 2 {
				return fmt.Errorf("name recipients or pass --all or --others")
			}
			s, err := open(cmd)
			if err != nil {
				return err
			}
			sess, err := s.RetrieveEncryptionSession(ctx(cmd), sdk.SessionID(args[0]), false, true)
			if err != nil {
				return err
			}
			var res sdk.RevokeResult
			switch {
			case all:
				res, err = sess.RevokeAll(ctx(cmd))
			case others:
				res, err = sess.RevokeOthers(ctx(cmd))
			default:
				res, err = sess.RevokeRecipients(ctx(cmd), args[1:])
			}
			if err != nil {
				return err
			}
			printStatus(cmd, res.Recipients)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "revoke every recipient, including yourself")
	cmd.Flags().BoolVar(&others, "others", false, "revoke every recipient except yourself")
	return cmd
}

func printStatus(cmd *cobra.Command, res map[string]sdk.ActionStatus) {
	ids := make([]string, 0, len(res))
	for id := range res {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := res[id]
		if st.Success {
			fmt.Fprintf(out(cmd), "%s\tok\n", id)
		} else {
			fmt.Fprintf(out(cmd), "%s\t%s\n", id, st.ErrorCode)
		}
	}
}

func anonymousCmd() *cobra.Command {
	var (
		jwt         string
		to          []string
		compression string
	)
	cmd := &cobra.Command{
		Use:   "anon-encrypt <message>",
		Short: "Seal a message for users without an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anon, err := sdk.NewAnonymous(clientOptions(), compression)
			if err != nil {
				return err
			}
			users := make([]sdk.UserID, 0, len(to))
			for _, u := range to {
				users = append(users, sdk.UserID(u))
			}
			sess, err := anon.CreateEncryptionSession(ctx(cmd), jwt, users)
			if err != nil {
				return err
			}
			msg, err := sess.EncryptMessage(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "session", sess.ID)
			fmt.Fprintln(out(cmd), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&jwt, "token", "", "encryption token from the application backend")
	cmd.Flags().StringSliceVar(&to, "to", nil, "user IDs to seal for")
	cmd.Flags().StringVar(&compression, "compression", "zstd", "file compression: zstd, lz4 or none")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
