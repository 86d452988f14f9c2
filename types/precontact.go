package types

// SignStatus is the three-state signing preference read from a contact card.
// "not found" is a distinct state and must never collapse into "do not sign".
type SignStatus int

const (
	SignStatusNotFound SignStatus = iota
	SignStatusSign
	SignStatusDoNotSign
)

func (s SignStatus) String() string {
	switch s {
	case SignStatusSign:
		return "sign"
	case SignStatusDoNotSign:
		return "doNotSign"
	default:
		return "signingFlagNotFound"
	}
}

// PreContact is the verified, parsed sending preference record for a
// counterparty. It only exists after the cards detached signature checked
// out against the owners own keys; unverified cards never produce one.
// Recomputed on every resolution, not cached here.
type PreContact struct {
	Email      string     `json:"email"`
	PublicKeys [][]byte   `json:"publicKeys,omitempty"` // raw (binary) pinned keys, card order
	Sign       SignStatus `json:"sign"`
	Encrypt    bool       `json:"encrypt"`
	Scheme     string     `json:"scheme,omitempty"`
	MIMEType   string     `json:"mimeType,omitempty"`
}
