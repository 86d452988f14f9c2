package types

// KeyState is a bitmask the key directory reports per key.
type KeyState int

const (
	// KeyStateNotCompromised means signatures from this key can still be trusted
	KeyStateNotCompromised KeyState = 1 << iota
	// KeyStateActive means the key is still in use (not obsolete, encryption allowed)
	KeyStateActive
)

// RecipientType distinguishes addresses hosted on a first-party domain
// from everyone else.
type RecipientType int

const (
	RecipientTypeInternal RecipientType = 1
	RecipientTypeExternal RecipientType = 2
)

// PublicKeyEntry is a single key directory entry for an email address.
type PublicKeyEntry struct {
	PublicKey string   `json:"publicKey"`
	Flags     KeyState `json:"flags"`
}

// IsCompromised reports whether the directory no longer trusts the key.
// The not-compromised bit being absent is what marks compromise, there is
// no dedicated "compromised" flag.
func (e PublicKeyEntry) IsCompromised() bool {
	return e.Flags&KeyStateNotCompromised == 0
}

// IsObsolete reports whether the key should no longer be encrypted to.
func (e PublicKeyEntry) IsObsolete() bool {
	return e.Flags&KeyStateActive == 0
}

// KeysResponse is the key directory answer for a single email address.
// Treated as read-only input by the resolution pipeline.
type KeysResponse struct {
	Keys          []PublicKeyEntry `json:"keys"`
	RecipientType RecipientType    `json:"recipientType"`
}

// ValidKeys returns the directory keys that are neither compromised nor obsolete,
// in directory order.
func (kr *KeysResponse) ValidKeys() []PublicKeyEntry {
	if kr == nil {
		return nil
	}
	valid := make([]PublicKeyEntry, 0, len(kr.Keys))
	for _, k := range kr.Keys {
		if !k.IsCompromised() && !k.IsObsolete() {
			valid = append(valid, k)
		}
	}
	return valid
}

// IsInternal reports whether the directory classified the address as first-party.
func (kr *KeysResponse) IsInternal() bool {
	return kr != nil && kr.RecipientType == RecipientTypeInternal
}
