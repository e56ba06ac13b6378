// Package catalog holds the reward tables for boosts, challenges, quests,
// custom challenges and health reassessments.
//
// A compiled-in catalog is always available. An optional YAML file overrides
// any section it names.
package catalog

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/fuelpoints/platform/internal/domain"
	"gopkg.in/yaml.v3"
)

// Boost is a one-tap daily action from the weekly pool.
type Boost struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	FP   int64  `yaml:"fp" json:"fp"`
}

// Challenge is a standard multi-day challenge definition.
type Challenge struct {
	ID                    string   `yaml:"id" json:"id"`
	Title                 string   `yaml:"title" json:"title"`
	Actions               []string `yaml:"actions" json:"actions"`
	VerificationsRequired int      `yaml:"verifications_required" json:"verifications_required"`
	DailyReward           int64    `yaml:"daily_reward" json:"daily_reward"`
	CompletionBonus       int64    `yaml:"completion_bonus" json:"completion_bonus"`
}

// Quest is a twelve-week quest definition.
type Quest struct {
	ID              string `yaml:"id" json:"id"`
	Title           string `yaml:"title" json:"title"`
	WeeklyReward    int64  `yaml:"weekly_reward" json:"weekly_reward"`
	CompletionBonus int64  `yaml:"completion_bonus" json:"completion_bonus"`
}

// CustomTier is the reward pair for custom challenges with a given daily minimum.
type CustomTier struct {
	DailyMinimum     int   `yaml:"daily_minimum" json:"daily_minimum"`
	DailyReward      int64 `yaml:"daily_reward" json:"daily_reward"`
	CompletionReward int64 `yaml:"completion_reward" json:"completion_reward"`
}

// Catalog is the full reward configuration.
type Catalog struct {
	Boosts             []Boost            `yaml:"boosts"`
	BoostPoolSize      int                `yaml:"boost_pool_size"`
	Challenges         []Challenge        `yaml:"challenges"`
	Quests             []Quest            `yaml:"quests"`
	CustomTiers        []CustomTier       `yaml:"custom_tiers"`
	HealthWeights      map[string]float64 `yaml:"health_weights"`
	ReassessmentReward int64              `yaml:"reassessment_reward"`
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	return &Catalog{
		Boosts: []Boost{
			{ID: "water-glass", Name: "Drink a glass of water", FP: 1},
			{ID: "stretch-5", Name: "Stretch for five minutes", FP: 1},
			{ID: "walk-10", Name: "Take a ten minute walk", FP: 2},
			{ID: "stairs", Name: "Take the stairs", FP: 1},
			{ID: "fruit", Name: "Eat a piece of fruit", FP: 1},
			{ID: "breathe", Name: "Two minutes of deep breathing", FP: 1},
			{ID: "screen-break", Name: "Screen-free lunch", FP: 2},
			{ID: "early-bed", Name: "In bed before eleven", FP: 3},
			{ID: "gratitude", Name: "Write down one thing you are grateful for", FP: 1},
			{ID: "sunlight", Name: "Ten minutes of morning sunlight", FP: 2},
		},
		BoostPoolSize: 6,
		Challenges: []Challenge{
			{
				ID: "hydration-week", Title: "Hydration Week",
				Actions:               []string{"water-am", "water-noon", "water-pm", "no-soda"},
				VerificationsRequired: 7, DailyReward: 5, CompletionBonus: 50,
			},
			{
				ID: "move-more", Title: "Move More",
				Actions:               []string{"steps-8k", "stairs", "stretch", "walk-after-dinner"},
				VerificationsRequired: 14, DailyReward: 5, CompletionBonus: 100,
			},
			{
				ID: "sleep-reset", Title: "Sleep Reset",
				Actions:               []string{"no-screens-late", "bed-by-11", "no-caffeine-pm", "wind-down"},
				VerificationsRequired: 21, DailyReward: 8, CompletionBonus: 150,
			},
		},
		Quests: []Quest{
			{ID: "foundations", Title: "Foundations", WeeklyReward: 25, CompletionBonus: 250},
			{ID: "strength-base", Title: "Strength Base", WeeklyReward: 30, CompletionBonus: 300},
		},
		CustomTiers: []CustomTier{
			{DailyMinimum: 2, DailyReward: 10, CompletionReward: 100},
			{DailyMinimum: 3, DailyReward: 15, CompletionReward: 150},
			{DailyMinimum: 4, DailyReward: 20, CompletionReward: 200},
			{DailyMinimum: 5, DailyReward: 25, CompletionReward: 250},
		},
		HealthWeights: map[string]float64{
			"activity":  0.2,
			"nutrition": 0.2,
			"sleep":     0.2,
			"stress":    0.2,
			"social":    0.2,
		},
		ReassessmentReward: 50,
	}
}

// Load reads a YAML catalog from path on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks internal consistency.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Boosts))
	for _, b := range c.Boosts {
		if b.ID == "" || b.FP <= 0 {
			return fmt.Errorf("catalog: boost %q needs an id and positive fp", b.ID)
		}
		if seen[b.ID] {
			return fmt.Errorf("catalog: duplicate boost %q", b.ID)
		}
		seen[b.ID] = true
	}
	if c.BoostPoolSize < domain.BoostsPerDay {
		return fmt.Errorf("catalog: boost_pool_size %d is below the daily cap %d", c.BoostPoolSize, domain.BoostsPerDay)
	}
	for _, ch := range c.Challenges {
		if ch.ID == "" || ch.VerificationsRequired < 1 {
			return fmt.Errorf("catalog: challenge %q needs an id and verifications_required >= 1", ch.ID)
		}
		if len(ch.Actions) > 0 && len(ch.Actions) < domain.StandardMinSelection {
			return fmt.Errorf("catalog: challenge %q lists fewer than %d actions", ch.ID, domain.StandardMinSelection)
		}
	}
	for _, q := range c.Quests {
		if q.ID == "" {
			return fmt.Errorf("catalog: quest without id")
		}
	}
	if len(c.CustomTiers) == 0 {
		return fmt.Errorf("catalog: at least one custom tier is required")
	}
	return nil
}

// Boost looks up a boost by id.
func (c *Catalog) Boost(id string) (Boost, bool) {
	for _, b := range c.Boosts {
		if b.ID == id {
			return b, true
		}
	}
	return Boost{}, false
}

// Challenge looks up a standard challenge by id.
func (c *Catalog) Challenge(id string) (Challenge, bool) {
	for _, ch := range c.Challenges {
		if ch.ID == id {
			return ch, true
		}
	}
	return Challenge{}, false
}

// Quest looks up a quest by id.
func (c *Catalog) Quest(id string) (Quest, bool) {
	for _, q := range c.Quests {
		if q.ID == id {
			return q, true
		}
	}
	return Quest{}, false
}

// CustomTier returns the tier for dailyMinimum: the highest tier whose
// minimum does not exceed it, or the lowest tier when none does.
func (c *Catalog) CustomTier(dailyMinimum int) CustomTier {
	tiers := append([]CustomTier(nil), c.CustomTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].DailyMinimum < tiers[j].DailyMinimum })
	best := tiers[0]
	for _, t := range tiers {
		if t.DailyMinimum <= dailyMinimum {
			best = t
		}
	}
	return best
}

// WeeklyBoostPool deterministically selects the boosts offered during the
// week starting on weekStart. Every caller gets the same pool for the same week.
func (c *Catalog) WeeklyBoostPool(weekStart domain.LocalDate) []Boost {
	n := len(c.Boosts)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	h := sha256.Sum256([]byte(weekStart.String()))
	seed := binary.BigEndian.Uint64(h[:8])
	for i := n - 1; i > 0; i-- {
		seed = seed*6364136223846793005 + 1442695040888963407
		j := int(seed % uint64(i+1))
		indices[i], indices[j] = indices[j], indices[i]
	}

	size := min(c.BoostPoolSize, n)
	pool := make([]Boost, size)
	for i := range size {
		pool[i] = c.Boosts[indices[i]]
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool
}

// InPool reports whether boostID is offered during the week starting on weekStart.
func (c *Catalog) InPool(weekStart domain.LocalDate, boostID string) (Boost, bool) {
	for _, b := range c.WeeklyBoostPool(weekStart) {
		if b.ID == boostID {
			return b, true
		}
	}
	return Boost{}, false
}
