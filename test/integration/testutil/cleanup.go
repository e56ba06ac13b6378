//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates all tables in dependency-safe order.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables := []string{
		"event_outbox",
		"level_ups",
		"fuel_point_corrections",
		"completion_records",
		"quest_instances",
		"custom_challenge_instances",
		"challenge_instances",
		"players",
	}

	for _, table := range tables {
		if _, err := env.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			env.t.Logf("CleanAll: truncate %s: %v", table, err)
		}
	}
}
