package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/fuelpoints/platform/internal/policy"
	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show fuel points, level, streak and active instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			snap := s.engine.LocalState()
			today := s.engine.Today()
			fmt.Fprintf(s.out, "Fuel Points  %d\n", snap.FuelPoints)
			fmt.Fprintf(s.out, "Level        %d (%d/%d)\n", snap.Level, snap.FPIntoLevel, snap.NextLevelThreshold)
			fmt.Fprintf(s.out, "Burn streak  %d\n", snap.BurnStreak)
			fmt.Fprintf(s.out, "Boosts left  %d today (%s)\n", snap.BoostsRemaining(today), today)

			active := make([]domain.InstanceState, 0, len(snap.Instances))
			for _, st := range snap.Instances {
				if st.Active() {
					active = append(active, st)
				}
			}
			if len(active) == 0 {
				fmt.Fprintln(s.out, "\nNo active challenges or quests.")
				return nil
			}

			fmt.Fprintln(s.out)
			w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tTITLE\tPROGRESS\tTODAY")
			for _, st := range active {
				done := ""
				if snap.DoneToday(st.Key(), today) {
					done = "done"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", st.Kind, st.InstanceID, st.Title, st.Progress, st.Target, done)
			}
			return w.Flush()
		},
	}
}

func newBoostsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boosts",
		Short: "List this week's daily boosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			resetDay, err := s.settings.ResetWeekday()
			if err != nil {
				return err
			}
			today := s.engine.Today()
			pool, err := s.store.ListBoostPool(cmd.Context(), s.engine.PlayerID(), today)
			if err != nil {
				return err
			}
			snap := s.engine.LocalState()

			w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFP\tTODAY")
			for _, b := range pool {
				done := ""
				if snap.DoneToday(domain.InstanceKey{Kind: domain.KindDailyBoost, InstanceID: b.ID}, today) {
					done = "done"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", b.ID, b.Name, b.FP, done)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "\n%d of %d boosts left today.\n", snap.BoostsRemaining(today), domain.BoostsPerDay)
			fmt.Fprintln(s.out, poolResetLine(today, resetDay))
			return nil
		},
	}
}

// poolResetLine says when the weekly boost pool next changes.
func poolResetLine(today domain.LocalDate, resetDay time.Weekday) string {
	days := policy.WeeklyFixedDayReset(today.Time(time.UTC), resetDay)
	if days == 1 {
		return fmt.Sprintf("New boosts tomorrow (%s).", resetDay)
	}
	return fmt.Sprintf("New boosts in %d days (%s).", days, resetDay)
}
