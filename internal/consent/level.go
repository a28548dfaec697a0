package consent

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is a player's stance on one consent topic, ordered from most
// restrictive (Ask) to most permissive (EnthusiasticAllow).
type Level int8

const (
	Ask               Level = -4
	HardDeny          Level = -3
	Deny              Level = -2
	SoftDeny          Level = -1
	Neutral           Level = 0
	SoftAllow         Level = 1
	Allow             Level = 2
	EnthusiasticAllow Level = 3
)

// AllowThreshold is the lowest level that counts as allowed.
const AllowThreshold = SoftAllow

var levelNames = map[Level]string{
	Ask:               "Ask",
	HardDeny:          "HardDeny",
	Deny:              "Deny",
	SoftDeny:          "SoftDeny",
	Neutral:           "Neutral",
	SoftAllow:         "SoftAllow",
	Allow:             "Allow",
	EnthusiasticAllow: "EnthusiasticAllow",
}

// Levels returns all levels in ascending order.
func Levels() []Level {
	return []Level{Ask, HardDeny, Deny, SoftDeny, Neutral, SoftAllow, Allow, EnthusiasticAllow}
}

func (l Level) Valid() bool { return l >= Ask && l <= EnthusiasticAllow }

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel accepts either a level name ("SoftAllow", "soft_allow",
// "soft-allow") or its integer value ("-4".."3").
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty consent level")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < int(Ask) || n > int(EnthusiasticAllow) {
			return 0, fmt.Errorf("consent level %d out of range", n)
		}
		return Level(n), nil
	}
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
	for l, name := range levelNames {
		if strings.ToLower(name) == norm {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown consent level %q", s)
}
