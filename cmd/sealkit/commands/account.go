package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sealkit/sdk"
)

func initCmd() *cobra.Command {
	var (
		signup     string
		deviceName string
		name       string
		expire     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an account on the key server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			info, err := s.CreateAccount(ctx(cmd), sdk.CreateAccountOptions{
				SignupJWT:   signup,
				DisplayName: name,
				DeviceName:  deviceName,
				ExpireAfter: expire,
			})
			if err != nil {
				return err
			}
			fp, err := s.FingerprintIdentity()
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Account created.\nUser:        %s\nDevice:      %s\nFingerprint: %s\n",
				info.UserID, info.DeviceID, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&signup, "signup-token", "", "signup token from the application backend")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&deviceName, "device-name", "", "name of this device")
	cmd.Flags().DurationVar(&expire, "expire", 0, "device key lifetime (default five years)")
	_ = cmd.MarkFlagRequired("signup-token")
	return cmd
}

func infoCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the local account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			if refresh {
				if err := s.UpdateCurrentDevice(ctx(cmd)); err != nil {
					return err
				}
			}
			info, err := s.CurrentAccountInfo()
			if err != nil {
				return err
			}
			if info == nil {
				fmt.Fprintln(out(cmd), "No account. Run sealkit init.")
				return nil
			}
			fmt.Fprintf(out(cmd), "Server:  %s\nUser:    %s\nDevice:  %s\nExpires: %s\n",
				info.ServerURL, info.UserID, info.DeviceID, info.DeviceExpires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh the device expiry from the key server")
	return cmd
}

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the identity fingerprint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			fp, err := s.FingerprintIdentity()
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), fp)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the identity export to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			export, err := s.ExportIdentity()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, export, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Identity written to %s. Keep it secret.\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "out", "o", "identity.sealkit", "output file")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Install an identity export into an empty home",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			export, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := s.ImportIdentity(ctx(cmd), export); err != nil {
				return err
			}
			info, err := s.CurrentAccountInfo()
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Imported %s (device %s).\n", info.UserID, info.DeviceID)
			return nil
		},
	}
}

func renewCmd() *cobra.Command {
	var expire time.Duration
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Rotate the keys of this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			if err := s.RenewKeys(ctx(cmd), sdk.RenewKeysOptions{ExpireAfter: expire}); err != nil {
				return err
			}
			fp, err := s.FingerprintIdentity()
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Keys renewed.\nFingerprint: %s\n", fp)
			return nil
		},
	}
	cmd.Flags().DurationVar(&expire, "expire", 0, "new key lifetime (default five years)")
	return cmd
}

func deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage the devices of this account",
	}

	var (
		name   string
		path   string
		expire time.Duration
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a sub-identity and write its export to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			sub, err := s.CreateSubIdentity(ctx(cmd), sdk.SubIdentityOptions{DeviceName: name, ExpireAfter: expire})
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, sub.BackupKey, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Device %s created. Import %s on the new device, then run sealkit reencrypt %s.\n",
				sub.DeviceID, path, sub.DeviceID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "device name")
	add.Flags().StringVarP(&path, "out", "o", "device.sealkit", "output file for the device export")
	add.Flags().DurationVar(&expire, "expire", 0, "device key lifetime (default five years)")

	missing := &cobra.Command{
		Use:   "missing",
		Short: "List devices that lack session keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			devices, err := s.DevicesMissingKeys(ctx(cmd), true)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(out(cmd), "Every device has every key.")
			}
			for _, d := range devices {
				fmt.Fprintf(out(cmd), "%s\t%d\n", d.DeviceID, d.Count)
			}
			return nil
		},
	}

	cmd.AddCommand(add, missing)
	return cmd
}

func reencryptCmd() *cobra.Command {
	opts := sdk.DefaultMassReencryptOptions()
	cmd := &cobra.Command{
		Use:   "reencrypt <device>",
		Short: "Share every session key this device reads with another device of the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			res, err := s.MassReencrypt(ctx(cmd), sdk.DeviceID(args[0]), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Reencrypted %d sessions, %d failed.\n", res.Reencrypted, res.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Retries, "retries", opts.Retries, "attempts per session")
	cmd.Flags().IntVar(&opts.RetrieveBatchSize, "batch", opts.RetrieveBatchSize, "sessions fetched per round")
	cmd.Flags().DurationVar(&opts.WaitBetweenRetries, "wait", opts.WaitBetweenRetries, "pause between attempts")
	cmd.Flags().BoolVar(&opts.ForceLocalAccountUpdate, "refresh", false, "refresh the device expiry first")
	return cmd
}

func sigchainCmd() *cobra.Command {
	var (
		position int
		check    string
	)
	cmd := &cobra.Command{
		Use:   "sigchain <user>",
		Short: "Print or check the sigchain hash of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			user := sdk.UserID(args[0])
			if check != "" {
				res, err := s.CheckSigchainHash(ctx(cmd), user, check, position)
				if err != nil {
					return err
				}
				if !res.Found {
					return fmt.Errorf("hash not found in the sigchain of %s (last position %d)", user, res.LastPosition)
				}
				fmt.Fprintf(out(cmd), "Found at position %d of %d.\n", res.Position, res.LastPosition)
				return nil
			}
			h, err := s.GetSigchainHash(ctx(cmd), user, position)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%d\t%s\n", h.Position, h.Hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&position, "position", -1, "entry position (-1 for the last)")
	cmd.Flags().StringVar(&check, "check", "", "hash to look up instead of printing")
	return cmd
}
