// Package verbs implements the configurable triggers that open a consent
// view. Every trigger is a capability-gated action that, when activated,
// yields the same ViewRequest; triggers differ only in their gates.
package verbs

import (
	"errors"
	"fmt"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
)

const DisabledOutOfRangeKey = "detail-examinable-verb-disabled"

var (
	ErrUnknownVerb  = errors.New("unknown verb")
	ErrVerbDisabled = errors.New("verb disabled")
)

// Context describes a user looking at a target.
type Context struct {
	User   consent.EntityID
	Target consent.EntityID

	CanAccess   bool
	CanInteract bool
	Distance    int

	// TargetHasStore is false for entities without consent preferences;
	// those never offer consent verbs.
	TargetHasStore bool
}

// Verb is one offered entry as shown to the user.
type Verb struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Message  string `json:"message,omitempty"`
}

type Translate func(key string) string

type trigger struct {
	cfg      tuning.Verb
	maxRange int
}

// Set holds the configured triggers in configuration order.
type Set struct {
	triggers []trigger
	byID     map[string]int
}

func NewSet(cfgs []tuning.Verb, detailsRange int) *Set {
	s := &Set{byID: map[string]int{}}
	for _, c := range cfgs {
		r := c.MaxRange
		if r < 0 {
			r = detailsRange
		}
		s.byID[c.ID] = len(s.triggers)
		s.triggers = append(s.triggers, trigger{cfg: c, maxRange: r})
	}
	return s
}

// offered reports whether the trigger appears at all, and if so whether it
// is disabled and why.
func (tr trigger) offered(ctx Context) (ok bool, disabled bool, msgKey string) {
	if !ctx.TargetHasStore {
		return false, false, ""
	}
	if tr.cfg.RequireInteract && (!ctx.CanAccess || !ctx.CanInteract) {
		return false, false, ""
	}
	if tr.maxRange > 0 && ctx.Distance > tr.maxRange {
		return true, true, DisabledOutOfRangeKey
	}
	return true, false, ""
}

func (s *Set) List(ctx Context, tr Translate) []Verb {
	if tr == nil {
		tr = func(key string) string { return key }
	}
	var out []Verb
	for _, t := range s.triggers {
		ok, disabled, msgKey := t.offered(ctx)
		if !ok {
			continue
		}
		v := Verb{
			ID:       t.cfg.ID,
			Text:     tr(t.cfg.TextKey),
			Category: t.cfg.Category,
			Disabled: disabled,
		}
		if msgKey != "" {
			v.Message = tr(msgKey)
		}
		out = append(out, v)
	}
	return out
}

// Activate runs the trigger identified by id and returns the view request
// it emits.
func (s *Set) Activate(id string, ctx Context) (consent.ViewRequest, error) {
	i, ok := s.byID[id]
	if !ok {
		return consent.ViewRequest{}, fmt.Errorf("%w: %q", ErrUnknownVerb, id)
	}
	offered, disabled, _ := s.triggers[i].offered(ctx)
	if !offered || disabled {
		return consent.ViewRequest{}, fmt.Errorf("%w: %q", ErrVerbDisabled, id)
	}
	return consent.ViewRequest{Requester: ctx.User, Target: ctx.Target}, nil
}
