package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sealkit/internal/config"
	"sealkit/internal/logging"
	"sealkit/internal/relayserver"
	"sealkit/internal/token"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	listen     string
	appID      string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "sealkit-relay",
		Short:         "In-memory sealkit key server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&f.appID, "app-id", "", "application ID (overrides server.app_id)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (overrides log.level)")
	root.Flags().StringVarP(&f.listen, "listen", "l", "", "listen address (overrides server.listen)")
	root.AddCommand(tokenCmd(&f))
	return root
}

func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.LoadFile(f.configPath, false)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("listen") {
		cfg.Server.Listen = f.listen
	}
	if f.appID != "" {
		cfg.Server.AppID = f.appID
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	opts, err := cfg.LogOptions("relay")
	if err != nil {
		return err
	}
	log := logging.New(opts)

	srv, err := relayserver.New(relayserver.Options{
		AppID:          cfg.Server.AppID,
		Secret:         []byte(cfg.Server.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ClockSkew:      cfg.Server.ClockSkew,
		Logger:         logging.Module(log, "relayserver"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = srv.ListenAndServe(ctx, cfg.Server.Listen)
	log.Info().Err(err).Msg("key server stopped")
	return err
}

func tokenCmd(f *flags) *cobra.Command {
	var (
		ttl        time.Duration
		recipients []string
	)
	cmd := &cobra.Command{
		Use:       "token signup|encrypt",
		Short:     "Mint a development token signed with the server secret",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(token.PurposeSignup), string(token.PurposeEncrypt)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			purpose := token.Purpose(args[0])
			if purpose != token.PurposeSignup && purpose != token.PurposeEncrypt {
				return fmt.Errorf("unknown token purpose %q", args[0])
			}
			issuer, err := token.NewIssuer(cfg.Server.AppID, []byte(cfg.Server.JWTSecret))
			if err != nil {
				return err
			}
			raw, err := issuer.Issue(purpose, ttl, recipients...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringSliceVar(&recipients, "recipient", nil, "restrict an encrypt token to these users")
	return cmd
}
