package types

import "github.com/ProtonMail/gopenpgp/v2/crypto"

// PGPScheme is the packaging strategy used when sending to a recipient.
type PGPScheme int

const (
	PGPSchemeInternal         PGPScheme = 1  // first-party end-to-end
	PGPSchemeEncryptedOutside PGPScheme = 2  // password-protected external mail
	PGPSchemeCleartext        PGPScheme = 4  // no encryption
	PGPSchemePGPInline        PGPScheme = 8  // inline PGP
	PGPSchemePGPMIME          PGPScheme = 16 // PGP/MIME
)

func (s PGPScheme) String() string {
	switch s {
	case PGPSchemeInternal:
		return "internal"
	case PGPSchemeEncryptedOutside:
		return "encrypted-outside"
	case PGPSchemeCleartext:
		return "cleartext"
	case PGPSchemePGPInline:
		return "pgp-inline"
	case PGPSchemePGPMIME:
		return "pgp-mime"
	default:
		return "unknown"
	}
}

// SendPreferences is the final per-recipient decision: whether to encrypt
// and sign, which scheme and mime type to package with and which public key
// to encrypt to. Immutable once produced by the resolver.
type SendPreferences struct {
	Encrypt           bool        `json:"encrypt"`
	Sign              bool        `json:"sign"`
	Scheme            PGPScheme   `json:"scheme"`
	MIMEType          string      `json:"mimeType"`
	PublicKey         *crypto.Key `json:"-"`
	IsPublicKeyPinned bool        `json:"isPublicKeyPinned"`
	HasApiKeys        bool        `json:"hasApiKeys"`
	Error             error       `json:"-"`
}

// Equal compares two preference decisions. Key material is compared by
// fingerprint, not byte equality.
func (sp SendPreferences) Equal(other SendPreferences) bool {
	if sp.Encrypt != other.Encrypt ||
		sp.Sign != other.Sign ||
		sp.Scheme != other.Scheme ||
		sp.MIMEType != other.MIMEType ||
		sp.IsPublicKeyPinned != other.IsPublicKeyPinned ||
		sp.HasApiKeys != other.HasApiKeys {
		return false
	}
	if (sp.PublicKey == nil) != (other.PublicKey == nil) {
		return false
	}
	if sp.PublicKey != nil && sp.PublicKey.GetFingerprint() != other.PublicKey.GetFingerprint() {
		return false
	}
	if (sp.Error == nil) != (other.Error == nil) {
		return false
	}
	return true
}
