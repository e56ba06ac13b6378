package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/engine"
	"github.com/spf13/cobra"
)

func newBoostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boost BOOST_ID",
		Short: "Complete one of this week's daily boosts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return complete(cmd, domain.KindDailyBoost, args[0], domain.Selection{})
		},
	}
}

func newReassessCmd() *cobra.Command {
	var scores []string
	cmd := &cobra.Command{
		Use:   "reassess",
		Short: "Submit a health reassessment (once per 30 days)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := ParseScores(scores)
			if err != nil {
				return err
			}
			return complete(cmd, domain.KindHealthReassessment, "", domain.Selection{CategoryScores: parsed})
		},
	}
	cmd.Flags().StringArrayVar(&scores, "score", nil, "category score as name=value (0-100), repeatable")
	cmd.MarkFlagRequired("score")
	return cmd
}

// ParseScores turns name=value pairs into category scores.
func ParseScores(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("score %q: want name=value", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("score %q: %w", p, err)
		}
		out[name] = v
	}
	return out, nil
}

func complete(cmd *cobra.Command, kind domain.ActionKind, instanceID string, sel domain.Selection) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.attempt(cmd.Context(), kind, instanceID, sel)
}

func (s *session) attempt(ctx context.Context, kind domain.ActionKind, instanceID string, sel domain.Selection) error {
	var earned *engine.Event
	cancel := s.engine.OnceReward(func(ev engine.Event) { earned = &ev })
	a, err := s.engine.AttemptCompletion(ctx, kind, instanceID, sel)
	cancel()
	if err != nil {
		return describeFailure(err)
	}
	printAttempt(s.out, a)
	if earned != nil && earned.ParentCompleted {
		fmt.Fprintf(s.out, "Completed! %d FP including the completion bonus.\n", earned.FPEarned)
	}

	// wait for the post-completion resync so the totals below are authoritative
	if err := s.engine.Resync(ctx); err != nil {
		s.logger.Warn("resync after completion failed", "error", err)
	}
	snap := s.engine.LocalState()
	fmt.Fprintf(s.out, "Now at %d FP, level %d, streak %d.\n", snap.FuelPoints, snap.Level, snap.BurnStreak)
	return nil
}

func printAttempt(w io.Writer, a *engine.Attempt) {
	switch {
	case a.Conflict:
		fmt.Fprintln(w, "Already recorded for this window; nothing new credited.")
	default:
		fmt.Fprintf(w, "+%d FP", a.Reward)
		if a.StreakBonus > 0 {
			fmt.Fprintf(w, " (+%d streak bonus)", a.StreakBonus)
		}
		fmt.Fprintln(w)
	}
}

func describeFailure(err error) error {
	switch domain.CodeOf(err) {
	case domain.CodeAlreadyFinished:
		return fmt.Errorf("that instance is no longer active: %w", err)
	case domain.CodeTransient:
		return fmt.Errorf("could not reach the server, nothing was recorded: %w", err)
	case domain.CodeInFlight:
		return fmt.Errorf("a submission for this is already in progress")
	}
	return err
}
