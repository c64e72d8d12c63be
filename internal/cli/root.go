package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
	out    *Output
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "chatctl",
		Short: "CLI tool for the presence chat API",
		Long: `chatctl is a CLI tool for the presence chat JSON API.

Join the room under a display name, send public or private messages,
and watch the room. The joined name is remembered in the user file so
later commands act as that participant.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Load the joined name if not provided via flag/env
			if err := cfg.LoadUser(); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL, cfg.User)
			out = NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr(), !cfg.NoColor)
			if cfg.Verbose {
				cmd.PrintErrf("server=%s user=%q\n", cfg.ServerURL, cfg.User)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: CHATCTL_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&cfg.User, "user", "u", cfg.User, "Act as this participant (env: CHATCTL_USER)")
	rootCmd.PersistentFlags().StringVar(&cfg.UserFile, "user-file", cfg.UserFile, "File remembering the joined name (env: CHATCTL_USER_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable coloured output (env: CHATCTL_NO_COLOR)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newJoinCmd())
	rootCmd.AddCommand(newParticipantsCmd())
	rootCmd.AddCommand(newHeartbeatCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newMessagesCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		// out is unset when flag parsing or setup failed
		if out == nil {
			out = NewOutput(cfg.Output, os.Stdout, os.Stderr, !cfg.NoColor)
		}
		out.PrintError(err)
		stop()
		os.Exit(1)
	}
}
