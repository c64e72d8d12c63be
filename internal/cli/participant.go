package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoUser = errors.New("no participant selected: run 'chatctl join <name>' or pass --user")

// requireUser fails commands that act as a participant before one is known
func requireUser() error {
	if client.User() == "" {
		return errNoUser
	}
	return nil
}

func newJoinCmd() *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "join <name>",
		Short: "Join the room under a display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client.Join(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if !noSave {
				if err := cfg.SaveUser(p.Name); err != nil {
					return fmt.Errorf("joined as %s but could not save user file: %w", p.Name, err)
				}
			}
			client.SetUser(p.Name)

			out.Print(*p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not remember the name in the user file")

	return cmd
}

func newParticipantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "participants",
		Aliases: []string{"who"},
		Short:   "List participants currently online",
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := client.Participants(cmd.Context())
			if err != nil {
				return err
			}

			out.Print(ps)
			return nil
		},
	}
}

func newHeartbeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat",
		Short: "Tell the server you are still online",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			if err := client.Heartbeat(cmd.Context()); err != nil {
				return err
			}

			out.PrintMessage("Still online as " + client.User())
			return nil
		},
	}
}
