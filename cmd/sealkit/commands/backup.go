package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sealkit/sdk"
)

const backupPasswordEnv = "SEALKIT_BACKUP_PASSWORD"

func backupCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Store the identity on the key server under a password",
	}
	cmd.PersistentFlags().StringVar(&password, "password", "", "backup password (or "+backupPasswordEnv+")")

	save := &cobra.Command{
		Use:   "save",
		Short: "Seal the identity with a password and upload it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			info, err := s.CurrentAccountInfo()
			if err != nil {
				return err
			}
			if info == nil {
				return sdk.ErrNoAccount
			}
			export, err := s.ExportIdentity()
			if err != nil {
				return err
			}
			pw, err := readSecret(cmd, password, backupPasswordEnv, "Backup password: ")
			if err != nil {
				return err
			}
			b := sdk.NewPasswordBackup(clientOptions(), sdk.DefaultBackupParams())
			if err := b.SaveIdentity(ctx(cmd), info.UserID, pw, export); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Backup saved for %s.\n", info.UserID)
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <user>",
		Short: "Download a backup and import it into an empty home",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, backupPasswordEnv, "Backup password: ")
			if err != nil {
				return err
			}
			b := sdk.NewPasswordBackup(clientOptions(), sdk.DefaultBackupParams())
			export, err := b.RetrieveIdentity(ctx(cmd), sdk.UserID(args[0]), pw)
			if err != nil {
				return err
			}
			s, err := open(cmd)
			if err != nil {
				return err
			}
			if err := s.ImportIdentity(ctx(cmd), export); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Identity of %s restored.\n", args[0])
			return nil
		},
	}

	var next string
	passwd := &cobra.Command{
		Use:   "passwd <user>",
		Short: "Change the backup password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := readSecret(cmd, password, backupPasswordEnv, "Current backup password: ")
			if err != nil {
				return err
			}
			nextPw, err := readSecret(cmd, next, "", "New backup password: ")
			if err != nil {
				return err
			}
			b := sdk.NewPasswordBackup(clientOptions(), sdk.DefaultBackupParams())
			if err := b.ChangeIdentityPassword(ctx(cmd), sdk.UserID(args[0]), current, nextPw); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "Backup password changed.")
			return nil
		},
	}
	passwd.Flags().StringVar(&next, "new-password", "", "new backup password")

	cmd.AddCommand(save, restore, passwd)
	return cmd
}
