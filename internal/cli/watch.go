package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fuelpoints/platform/internal/client"
	"github.com/fuelpoints/platform/internal/engine"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow progression changes made from any device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			unsub := s.engine.Subscribe(func(ev engine.Event) {
				switch ev.Type {
				case engine.EventResynced:
					snap := s.engine.LocalState()
					fmt.Fprintf(s.out, "%d FP  level %d  streak %d\n", snap.FuelPoints, snap.Level, snap.BurnStreak)
				case engine.EventLevelUp:
					fmt.Fprintf(s.out, "Level up! Now level %d\n", ev.Level)
				}
			})
			defer unsub()

			fmt.Fprintf(s.out, "Watching %s (ctrl-c to stop)\n", s.engine.PlayerID())
			listener := client.NewListener(s.settings.APIURL, s.settings.Token, s.logger)
			listener.Run(ctx, func(client.Notification) { s.engine.NotifyRemote() }, s.engine.NotifyRemote)
			return nil
		},
	}
}
