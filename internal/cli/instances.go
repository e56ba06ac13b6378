package cli

import (
	"fmt"
	"io"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/spf13/cobra"
)

func newChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Start, log and cancel standard challenges",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start CHALLENGE_ID",
			Short: "Start a catalog challenge",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, func(s *session) error {
					st, err := s.store.StartChallenge(cmd.Context(), s.engine.PlayerID(), args[0])
					if err != nil {
						return err
					}
					s.engine.NotifyRemote()
					printStarted(s.out, st)
					return nil
				})
			},
		},
		newLogCmd(domain.KindStandardChallenge, "Log today's actions for a challenge"),
		newCancelCmd(domain.KindStandardChallenge),
	)
	return cmd
}

func newCustomCmd() *cobra.Command {
	var (
		title   string
		minimum int
	)
	start := &cobra.Command{
		Use:   "start ACTION_ID...",
		Short: "Start a custom challenge from your own actions",
		Args:  cobra.MinimumNArgs(domain.StandardMinSelection),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				st, err := s.store.StartCustomChallenge(cmd.Context(), domain.StartCustomChallengeParams{
					PlayerID:     s.engine.PlayerID(),
					Title:        title,
					Actions:      args,
					DailyMinimum: minimum,
				})
				if err != nil {
					return err
				}
				s.engine.NotifyRemote()
				printStarted(s.out, st)
				return nil
			})
		},
	}
	start.Flags().StringVar(&title, "title", "", "challenge title")
	start.Flags().IntVar(&minimum, "min", domain.StandardMinSelection, "actions required per day")
	start.MarkFlagRequired("title")

	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Start, log and cancel custom challenges",
	}
	cmd.AddCommand(start,
		newLogCmd(domain.KindCustomChallenge, "Log today's actions for a custom challenge"),
		newCancelCmd(domain.KindCustomChallenge),
	)
	return cmd
}

func newQuestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quest",
		Short: "Start and log weekly quests",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start QUEST_ID",
			Short: "Start a catalog quest",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, func(s *session) error {
					st, err := s.store.StartQuest(cmd.Context(), s.engine.PlayerID(), args[0])
					if err != nil {
						return err
					}
					s.engine.NotifyRemote()
					printStarted(s.out, st)
					return nil
				})
			},
		},
		newLogCmd(domain.KindQuestWeekly, "Log this week's actions for a quest"),
	)
	return cmd
}

func newLogCmd(kind domain.ActionKind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   "log INSTANCE_ID ACTION_ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return complete(cmd, kind, args[0], domain.Selection{ActionIDs: args[1:]})
		},
	}
}

func newCancelCmd(kind domain.ActionKind) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel INSTANCE_ID",
		Short: "Cancel an active instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				st, err := s.store.CancelInstance(cmd.Context(), s.engine.PlayerID(), kind, args[0])
				if err != nil {
					return describeFailure(err)
				}
				s.engine.NotifyRemote()
				fmt.Fprintf(s.out, "Cancelled %s at %d/%d.\n", st.Title, st.Progress, st.Target)
				return nil
			})
		},
	}
}

func withSession(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func printStarted(w io.Writer, st *domain.InstanceState) {
	fmt.Fprintf(w, "Started %s (%s)\n", st.Title, st.InstanceID)
	fmt.Fprintf(w, "  %d check-ins to finish, %d FP each, %d FP on completion\n", st.Target, st.DailyReward, st.CompletionBonus)
	if len(st.Actions) > 0 {
		fmt.Fprintf(w, "  actions: %v\n", st.Actions)
	}
}
