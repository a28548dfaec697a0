package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Name            string     `json:"name"`
	ProfileID       int64      `json:"profile_id,omitempty"`
	Encoding        string     `json:"encoding,omitempty"`
	MaxQueue        int        `json:"max_queue,omitempty"`
	Locale          string     `json:"locale,omitempty"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

// HelloAuth carries the server's shared token (when it requires one) and an
// optional resume token from a previous WELCOME.
type HelloAuth struct {
	Token       string `json:"token,omitempty"`
	ResumeToken string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	EntityID        string         `json:"entity_id"`
	ResumeToken     string         `json:"resume_token"`
	Encoding        string         `json:"encoding"`
	TickRateHz      int            `json:"tick_rate_hz"`
	ViewDelivery    string         `json:"view_delivery"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Consent      DigestRef `json:"consent"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client). Each catalog is sent as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`
	Digest          string      `json:"digest"`
	Part            int         `json:"part"`
	TotalParts      int         `json:"total_parts"`
	Data            interface{} `json:"data"`
}

type ConsentCatalogData struct {
	Topics []TopicInfo `json:"topics"`
	Levels []LevelInfo `json:"levels"`
}

type TopicInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Icon        string `json:"icon,omitempty"`
}

type LevelInfo struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Text  string `json:"text"`
	Color string `json:"color"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick,omitempty"`
	Instants        []InstantReq `json:"instants"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// SET_CONSENT
	Topic string `json:"topic,omitempty"`
	Level *int   `json:"level,omitempty"`

	// VIEW_CONSENT_REQ, VERBS, USE_VERB, CLOSE_VIEW
	TargetID string `json:"target_id,omitempty"`
	Verb     string `json:"verb,omitempty"`

	// MOVE
	DX int `json:"dx,omitempty"`
	DY int `json:"dy,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// VERB_LIST (server -> client)
type VerbListMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	AckFor          string    `json:"ack_for,omitempty"`
	TargetID        string    `json:"target_id"`
	Verbs           []VerbObs `json:"verbs"`
}

type VerbObs struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Message  string `json:"message,omitempty"`
}

// VIEW_CONSENT (server -> client). Sent only to the entity that asked.
// UIState marks pushes of a bound view; Closed tells the client the bound
// view went away.
type ViewConsentMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	TargetID        string         `json:"target_id"`
	TargetName      string         `json:"target_name"`
	Preferences     map[string]int `json:"preferences"`
	UIState         bool           `json:"ui_state,omitempty"`
	Closed          bool           `json:"closed,omitempty"`
}
