package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var (
		to      string
		private bool
	)

	cmd := &cobra.Command{
		Use:   "send <text>...",
		Short: "Send a message to the room or to one participant",
		Example: `  chatctl send hello everyone
  chatctl send --to bob --private see you at five`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			kind := kindChat
			if private {
				kind = kindPrivate
			}

			m, err := client.Send(cmd.Context(), to, strings.Join(args, " "), kind)
			if err != nil {
				return err
			}

			out.Print(*m)
			return nil
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", broadcast, "Recipient name, or "+broadcast+" for everyone")
	cmd.Flags().BoolVarP(&private, "private", "p", false, "Send as a private message")

	return cmd
}

func newMessagesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show the messages you can see",
		Long: `Show the messages visible to you: your own, broadcasts, messages
addressed to you, and join/leave notices. With --limit only the most
recent messages are shown, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if cmd.Flags().Changed("limit") && limit <= 0 {
				return fmt.Errorf("--limit must be a positive integer")
			}

			ms, err := client.Messages(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out.Print(ms)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only show the N most recent messages")

	return cmd
}

func newWatchCmd() *cobra.Command {
	opts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay online and print new messages as they arrive",
		Long: `Poll the server for new messages, heartbeating on every poll so the
participant is not evicted. Runs until interrupted, or for --polls polls.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if opts.interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			return watch(cmd.Context(), opts)
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 2*time.Second, "Time between polls")
	cmd.Flags().IntVar(&opts.history, "history", 10, "Messages of backlog to show on start (0 shows all)")
	cmd.Flags().IntVar(&opts.polls, "polls", 0, "Stop after this many polls (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.noHeartbeat, "no-heartbeat", false, "Watch without heartbeating")

	return cmd
}

type watchOptions struct {
	interval    time.Duration
	history     int
	polls       int
	noHeartbeat bool
}

// watch prints unseen messages on every poll, tracking the highest seq shown
func watch(ctx context.Context, opts watchOptions) error {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	var lastSeq int64
	first := true

	for n := 1; ; n++ {
		if !opts.noHeartbeat {
			if err := client.Heartbeat(ctx); err != nil {
				if IsNotFound(err) {
					return fmt.Errorf("%s is no longer online; join again to continue: %w", client.User(), err)
				}
				return err
			}
		}

		ms, err := client.Messages(ctx, 0)
		if err != nil {
			return err
		}

		fresh := lo.Filter(ms, func(m Message, _ int) bool { return m.Seq > lastSeq })
		if first && opts.history > 0 && len(fresh) > opts.history {
			fresh = fresh[len(fresh)-opts.history:]
		}
		first = false

		out.PrintStream(fresh)
		if len(fresh) > 0 {
			lastSeq = fresh[len(fresh)-1].Seq
		}

		if opts.polls > 0 && n >= opts.polls {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
