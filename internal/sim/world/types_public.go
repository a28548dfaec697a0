package world

import (
	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
)

type Vec2i struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Chebyshev is the tile distance used for every range gate.
func Chebyshev(a, b Vec2i) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// JoinRequest creates a player entity. Preferences are the rows loaded from
// the player's profile before the request was sent.
type JoinRequest struct {
	Name        string
	SessionID   string
	ProfileID   int64
	Preferences consent.PreferenceMap
	Encoding    string
	Locale      string
	Out         chan []byte
	Resp        chan JoinResponse
}

// AttachRequest rebinds a new connection to an entity that is still inside
// its resume grace window.
type AttachRequest struct {
	ResumeToken string
	SessionID   string
	Encoding    string
	Locale      string
	Out         chan []byte
	Resp        chan JoinResponse
}

// LeaveRequest reports a dropped connection. It is ignored when the entity
// has since been attached to a newer session.
type LeaveRequest struct {
	EntityID  consent.EntityID
	SessionID string
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
	// Err is set when an attach could not be honoured.
	Err string
}

type ActionEnvelope struct {
	EntityID consent.EntityID
	Act      protocol.ActMsg
}

type RecordedJoin struct {
	EntityID    consent.EntityID      `json:"entity_id"`
	Name        string                `json:"name"`
	ProfileID   int64                 `json:"profile_id,omitempty"`
	Preferences consent.PreferenceMap `json:"preferences,omitempty"`
}

type RecordedAction struct {
	EntityID consent.EntityID `json:"entity_id"`
	Act      protocol.ActMsg  `json:"act"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// ProfileSink persists accepted preference edits. Implementations must not
// block the caller.
type ProfileSink interface {
	SavePreference(profileID int64, topic consent.TopicID, level consent.Level)
}

type TickLogEntry struct {
	Tick     uint64             `json:"tick"`
	Joins    []RecordedJoin     `json:"joins,omitempty"`
	Attaches []consent.EntityID `json:"attaches,omitempty"`
	Leaves   []consent.EntityID `json:"leaves,omitempty"`
	Actions  []RecordedAction   `json:"actions,omitempty"`
	Entities int                `json:"entities"`
	Digest   string             `json:"digest"`
}

// Audit actions.
const (
	AuditSetConsent  = "SET_CONSENT"
	AuditViewConsent = "VIEW_CONSENT"
)

type AuditEntry struct {
	Tick      uint64 `json:"tick"`
	Action    string `json:"action"`
	Actor     string `json:"actor"`
	Target    string `json:"target"`
	Topic     string `json:"topic,omitempty"`
	From      int    `json:"from"`
	To        int    `json:"to"`
	ProfileID int64  `json:"profile_id,omitempty"`
	UIState   bool   `json:"ui_state,omitempty"`
}

// EntityInfo is a read-only copy of one entity, returned by queries.
type EntityInfo struct {
	ID        consent.EntityID      `json:"id"`
	Name      string                `json:"name"`
	Pos       Vec2i                 `json:"pos"`
	Actor     bool                  `json:"actor"`
	Connected bool                  `json:"connected"`
	ProfileID int64                 `json:"profile_id,omitempty"`
	Prefs     consent.PreferenceMap `json:"preferences,omitempty"`
}
