package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sealkit/sdk"
)

// registerCmd publishes a fresh pre-key bundle so peers can open channels.
func registerCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish pre-keys for pairwise channels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			if err := s.PublishPreKeys(ctx(cmd), count); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Published %d one-time pre-keys.\n", count)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "one-time pre-keys to generate")
	return cmd
}

func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <user> <device>",
		Short: "Open a pairwise channel with a peer device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			if err := s.InitiateChannel(ctx(cmd), sdk.UserID(args[0]), sdk.DeviceID(args[1])); err != nil {
				return fmt.Errorf("starting channel with %s/%s: %w", args[0], args[1], err)
			}
			fmt.Fprintf(out(cmd), "Channel open with %s/%s.\n", args[0], args[1])
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <user> <device> <message>",
		Short: "Send a message over a pairwise channel",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			if err := s.SendMessage(ctx(cmd), sdk.UserID(args[0]), sdk.DeviceID(args[1]), []byte(args[2])); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "sent")
			return nil
		},
	}
}

func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt queued channel messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			msgs, err := s.ReceiveMessages(ctx(cmd), limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				ts := time.Unix(m.Timestamp, 0).Format(time.RFC3339)
				fmt.Fprintf(out(cmd), "[%s %s/%s] %s\n", ts, m.FromUser, m.FromDevice, m.Plaintext)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum messages to fetch (0 for all)")
	return cmd
}
