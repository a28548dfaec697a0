package world

import "github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"

type WorldConfig struct {
	ID           string
	TickRateHz   int
	Seed         int64
	ViewDelivery string
	Locale       string

	Spawn        Vec2i
	BoundaryR    int
	AccessRange  int
	DetailsRange int

	ResumeGraceTicks int

	Verbs []tuning.Verb
	NPCs  []tuning.NPC
}

// ConfigFromTuning maps the tuning file onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning, seed int64) WorldConfig {
	return WorldConfig{
		ID:               id,
		TickRateHz:       t.TickRateHz,
		Seed:             seed,
		ViewDelivery:     t.ViewDelivery,
		Locale:           t.Locale,
		Spawn:            Vec2i{X: t.Spawn[0], Y: t.Spawn[1]},
		BoundaryR:        t.BoundaryR,
		AccessRange:      t.AccessRange,
		DetailsRange:     t.DetailsRange,
		ResumeGraceTicks: t.ResumeGraceSeconds * t.TickRateHz,
		Verbs:            t.Verbs,
		NPCs:             t.NPCs,
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "station"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.ViewDelivery == "" {
		c.ViewDelivery = tuning.DeliveryEvent
	}
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 64
	}
	if c.AccessRange <= 0 {
		c.AccessRange = 8
	}
	if c.DetailsRange <= 0 {
		c.DetailsRange = 3
	}
	if c.ResumeGraceTicks <= 0 {
		c.ResumeGraceTicks = 30 * c.TickRateHz
	}
	if c.Verbs == nil {
		c.Verbs = tuning.Defaults().Verbs
	}
}
