package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello       = "HELLO"
	TypeWelcome     = "WELCOME"
	TypeCatalog     = "CATALOG"
	TypeAct         = "ACT"
	TypeAck         = "ACK"
	TypeVerbList    = "VERB_LIST"
	TypeViewConsent = "VIEW_CONSENT"
)

// Instant types carried by ACT.
const (
	InstantSetConsent     = "SET_CONSENT"
	InstantViewConsentReq = "VIEW_CONSENT_REQ"
	InstantVerbs          = "VERBS"
	InstantUseVerb        = "USE_VERB"
	InstantCloseView      = "CLOSE_VIEW"
	InstantMove           = "MOVE"
)

// Frame encodings a client may ask for in HELLO.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
