package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sealkit/internal/config"
	"sealkit/internal/store"
	"sealkit/sdk"
)

const passphraseEnv = "SEALKIT_PASSPHRASE"

var (
	home       string
	passphrase string
	serverURL  string
	appID      string
	logLevel   string

	cfg      *config.Config
	instance *sdk.SDK
	stdin    *bufio.Reader
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:           "sealkit",
		Short:         "End-to-end encryption for messages and files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.sealkit)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase of the local keystore (or "+passphraseEnv+")")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "key server URL (overrides client.server_url)")
	root.PersistentFlags().StringVar(&appID, "app-id", "", "application ID (overrides client.app_id)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")

	root.AddCommand(
		initCmd(), infoCmd(), fingerprintCmd(), exportCmd(), importCmd(), renewCmd(),
		deviceCmd(), reencryptCmd(), backupCmd(),
		encryptCmd(), decryptCmd(), encryptFileCmd(), decryptFileCmd(), shareCmd(), revokeCmd(),
		anonymousCmd(), groupCmd(),
		registerCmd(), startSessionCmd(), sendCmd(), recvCmd(),
		sigchainCmd(),
	)
	err := root.Execute()
	if instance != nil {
		if cerr := instance.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func loadConfig(*cobra.Command) error {
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		home = filepath.Join(dir, ".sealkit")
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		return err
	}
	loaded, err := config.LoadHome(home)
	if err != nil {
		return err
	}
	if serverURL != "" {
		loaded.Client.ServerURL = serverURL
	}
	if appID != "" {
		loaded.Client.AppID = appID
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if loaded.Client.DatabasePath == "" {
		loaded.Client.DatabasePath = filepath.Join(home, "db")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// open unlocks the keystore and returns the SDK instance for this run.
func open(cmd *cobra.Command) (*sdk.SDK, error) {
	if instance != nil {
		return instance, nil
	}
	pass, err := readSecret(cmd, passphrase, passphraseEnv, "Keystore passphrase: ")
	if err != nil {
		return nil, err
	}
	key, err := store.NewKeystore(filepath.Join(home, "keystore.json")).Unlock(pass)
	if err != nil {
		return nil, err
	}
	s, err := sdk.New(sdk.Options{
		ServerURL:       cfg.Client.ServerURL,
		AppID:           cfg.Client.AppID,
		DatabasePath:    cfg.Client.DatabasePath,
		DatabaseKey:     key,
		InstanceName:    cfg.Client.InstanceName,
		LogLevel:        cfg.Log.Level,
		LogNoColor:      cfg.Log.NoColor,
		SessionCacheTTL: cfg.Client.SessionCacheTTL,
		FileCompression: cfg.Client.FileCompression,
		RequestTimeout:  cfg.Client.RequestTimeout,
		MaxRetries:      cfg.Client.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	instance = s
	return s, nil
}

func clientOptions() sdk.ClientOptions {
	return sdk.ClientOptions{
		ServerURL:  cfg.Client.ServerURL,
		AppID:      cfg.Client.AppID,
		MaxRetries: cfg.Client.MaxRetries,
	}
}

// readSecret returns flag, then the environment variable, then a terminal prompt.
func readSecret(cmd *cobra.Command, flag, env, prompt string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if stdin == nil {
			stdin = bufio.NewReader(cmd.InOrStdin())
		}
		line, err := stdin.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if line = strings.TrimRight(line, "\r\n"); line == "" {
			return "", fmt.Errorf("no secret on stdin for %q", strings.TrimSuffix(prompt, ": "))
		}
		return line, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
