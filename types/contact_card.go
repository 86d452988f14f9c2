package types

// CardType tags a contact card with its trust mechanics.
// Only signed-only cards carry the sending preferences this service reads;
// the other variants have independent trust handling and are deliberately
// skipped by the card verifier (visible ignore, not a fallthrough).
type CardType int

const (
	CardTypePlainText CardType = iota
	CardTypeEncryptedOnly
	CardTypeSignedOnly
	CardTypeSignAndEncrypt
)

func (t CardType) String() string {
	switch t {
	case CardTypePlainText:
		return "plaintext"
	case CardTypeEncryptedOnly:
		return "encrypted"
	case CardTypeSignedOnly:
		return "signed"
	case CardTypeSignAndEncrypt:
		return "signed+encrypted"
	default:
		return "unknown"
	}
}

// CardData is one contact card: a serialized vCard payload plus a detached
// armored signature over it, made with one of the owners private keys.
type CardData struct {
	Type      CardType `json:"type"`
	Data      string   `json:"data" validate:"required"`
	Signature string   `json:"signature,omitempty"`
}

// ContactCards is the stored contact record: all cards a user keeps for a
// single counterparty email address.
type ContactCards struct {
	BaseDocument `json:",inline"`
	OwnerAddress string     `json:"ownerAddress" validate:"required"`
	Email        string     `json:"email" validate:"required,email"`
	Cards        []CardData `json:"cards"`
	Created      int64      `json:"created"`
	Modified     int64      `json:"modified,omitempty"`
}
