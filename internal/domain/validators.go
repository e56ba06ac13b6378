package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var actionIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// ValidateSelection checks that at least min distinct, non-empty sub-actions
// were selected.
func ValidateSelection(actionIDs []string, min int) error {
	seen := make(map[string]bool, len(actionIDs))
	for _, id := range actionIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("selected action ids must not be empty")
		}
		seen[id] = true
	}
	if len(seen) < min {
		return fmt.Errorf("select at least %d actions, got %d", min, len(seen))
	}
	return nil
}

// ValidateSelectionAllowed checks every selected id is one of allowed.
func ValidateSelectionAllowed(actionIDs, allowed []string) error {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	for _, id := range actionIDs {
		if !set[id] {
			return fmt.Errorf("action %q is not part of this challenge", id)
		}
	}
	return nil
}

// ValidateCustomChallenge checks the shape of a new custom challenge.
func ValidateCustomChallenge(p StartCustomChallengeParams) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Actions) < StandardMinSelection {
		return fmt.Errorf("a custom challenge needs at least %d actions", StandardMinSelection)
	}
	for _, a := range p.Actions {
		if !actionIDRegex.MatchString(a) {
			return fmt.Errorf("invalid action id %q", a)
		}
	}
	if p.DailyMinimum < 1 || p.DailyMinimum > len(p.Actions) {
		return fmt.Errorf("daily minimum must be between 1 and %d, got %d", len(p.Actions), p.DailyMinimum)
	}
	return nil
}

// ValidateCategoryScores checks every score is within 0..100.
func ValidateCategoryScores(scores map[string]float64) error {
	if len(scores) == 0 {
		return fmt.Errorf("at least one category score is required")
	}
	for cat, s := range scores {
		if s < 0 || s > 100 {
			return fmt.Errorf("score for %s must be within 0..100, got %v", cat, s)
		}
	}
	return nil
}

// ValidateCorrection checks an administrative correction.
func ValidateCorrection(c FuelPointsCorrection) error {
	if c.Delta == 0 {
		return fmt.Errorf("correction delta must be non-zero")
	}
	if strings.TrimSpace(c.Reason) == "" {
		return fmt.Errorf("correction reason is required")
	}
	return nil
}
