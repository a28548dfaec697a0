package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// View delivery modes.
const (
	DeliveryEvent   = "event"
	DeliveryUIState = "ui_state"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int    `yaml:"tick_rate_hz"`
	MaxQueue   int    `yaml:"max_queue"`
	Locale     string `yaml:"locale"`

	// ViewDelivery selects how a view response reaches the requester:
	// "event" sends one message, "ui_state" binds a live view.
	ViewDelivery string `yaml:"view_delivery"`

	Spawn        [2]int `yaml:"spawn"`
	BoundaryR    int    `yaml:"boundary_r"`
	AccessRange  int    `yaml:"access_range"`
	DetailsRange int    `yaml:"details_range"`

	// Disconnected players keep their entity this long and may resume.
	ResumeGraceSeconds int `yaml:"resume_grace_seconds"`

	Verbs []Verb `yaml:"verbs"`
	NPCs  []NPC  `yaml:"npcs"`

	Digest string `yaml:"-"`
}

// Verb configures one trigger that opens a consent view.
type Verb struct {
	ID              string `yaml:"id"`
	TextKey         string `yaml:"text_key"`
	Category        string `yaml:"category"`
	RequireInteract bool   `yaml:"require_interact"`
	// MaxRange of 0 means unlimited; -1 uses DetailsRange.
	MaxRange int `yaml:"max_range"`
}

// NPC is a non-player entity spawned at world start.
type NPC struct {
	Name        string            `yaml:"name"`
	Pos         [2]int            `yaml:"pos"`
	Preferences map[string]string `yaml:"preferences"`
}

func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	sum := sha256.Sum256(raw)
	t.Digest = hex.EncodeToString(sum[:])
	return t, nil
}

func (t *Tuning) applyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 10
	}
	if t.MaxQueue <= 0 {
		t.MaxQueue = 16
	}
	if t.Locale == "" {
		t.Locale = "en-US"
	}
	if t.ViewDelivery == "" {
		t.ViewDelivery = DeliveryEvent
	}
	if t.BoundaryR <= 0 {
		t.BoundaryR = 64
	}
	if t.AccessRange <= 0 {
		t.AccessRange = 8
	}
	if t.DetailsRange <= 0 {
		t.DetailsRange = 3
	}
	if t.ResumeGraceSeconds <= 0 {
		t.ResumeGraceSeconds = 30
	}
	if t.Verbs == nil {
		t.Verbs = []Verb{
			{ID: "view-consent", TextKey: "view-consent-verb-text", Category: "examine", RequireInteract: true, MaxRange: -1},
		}
	}
}

func (t Tuning) Validate() error {
	switch t.ViewDelivery {
	case DeliveryEvent, DeliveryUIState:
	default:
		return fmt.Errorf("view_delivery %q: want %q or %q", t.ViewDelivery, DeliveryEvent, DeliveryUIState)
	}
	seen := map[string]bool{}
	for _, v := range t.Verbs {
		if v.ID == "" {
			return fmt.Errorf("verb with empty id")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate verb %q", v.ID)
		}
		seen[v.ID] = true
		if v.MaxRange < -1 {
			return fmt.Errorf("verb %q: max_range %d", v.ID, v.MaxRange)
		}
	}
	for i, n := range t.NPCs {
		if n.Name == "" {
			return fmt.Errorf("npc %d: empty name", i)
		}
	}
	return nil
}
