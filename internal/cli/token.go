package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fuelpoints/platform/internal/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newTokenCmd mints tokens from FUEL_JWT_SECRET for local development
// against an API that shares the secret.
func newTokenCmd() *cobra.Command {
	var (
		playerID string
		role     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:    "token",
		Short:  "Mint a development token (needs FUEL_JWT_SECRET)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("FUEL_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("FUEL_JWT_SECRET is not set")
			}
			mgr := auth.NewJWTManager(secret, ttl, ttl)

			realm, subject := auth.RealmPlayer, uuid.New()
			if role != "" {
				if !auth.ValidRole(role) {
					return fmt.Errorf("--admin-role: unknown role %q", role)
				}
				realm = auth.RealmAdmin
			}
			if playerID != "" {
				id, err := uuid.Parse(playerID)
				if err != nil {
					return fmt.Errorf("--player: %w", err)
				}
				subject = id
			}

			token, err := mgr.GenerateToken(realm, subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "", "subject id (random when empty)")
	cmd.Flags().StringVar(&role, "admin-role", "", "mint an admin token with this role instead")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
