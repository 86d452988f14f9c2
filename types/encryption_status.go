package types

// PGPTypeErrorCode is the numeric error code passed through to clients
// unchanged so they can branch on it.
type PGPTypeErrorCode int

const (
	PGPTypeErrorEmailFailedValidation PGPTypeErrorCode = 33101
	PGPTypeErrorRecipientNotFound     PGPTypeErrorCode = 33102
)

// Lock icon color codes shown next to a recipient.
const (
	IconColorBlue  = "blue"  // first-party end-to-end
	IconColorGreen = "green" // external PGP
	IconColorBlack = "black" // no encryption
	IconColorError = "error"
)

// User-facing status texts. Fixed strings, clients localize by text key.
const (
	StatusTextE2EEncrypted         = "End-to-end encrypted"
	StatusTextE2EEncryptedVerified = "End-to-end encrypted to verified recipient"
	StatusTextPGPEncrypted         = "PGP-encrypted"
	StatusTextPGPEncryptedVerified = "PGP-encrypted to verified recipient"
	StatusTextPGPSigned            = "PGP-signed"
	StatusTextNoEncryption         = "No encryption"
	StatusTextRecipientNotFound    = "Recipient could not be found"
	StatusTextInvalidEmail         = "Invalid email address"
	StatusTextResolutionFailed     = "Encryption status could not be determined"
)

// EncryptionIconStatus is the UI-consumable trust decision for a recipient.
type EncryptionIconStatus struct {
	IconColor   string `json:"iconColor"`
	Text        string `json:"text"`
	IsPGPPinned bool   `json:"isPGPPinned"`
	IsInvalid   bool   `json:"isInvalid"`
	NonExisting bool   `json:"nonExisting"`
}

// VerificationResult is the outcome of a message sender check:
// whether the sender could be verified and whether the signature held.
type VerificationResult struct {
	SenderVerified bool   `json:"senderVerified"`
	SignatureValid bool   `json:"signatureValid"`
	KeyFingerprint string `json:"keyFingerprint,omitempty"`
	Reason         string `json:"reason,omitempty"`
}
