package types

// AddressKey is one armored key pair attached to a users own address.
// Flags uses the same bitmask the key directory reports.
type AddressKey struct {
	PublicKey  string   `json:"publicKey" validate:"required"`
	PrivateKey string   `json:"privateKey,omitempty"`
	Flags      KeyState `json:"flags"`
	Primary    bool     `json:"primary,omitempty"`
}

// UserAddress is an address owned by the current user together with its keys.
// These keys double as the trust roots for contact card verification.
type UserAddress struct {
	Email string       `json:"email" validate:"required,email"`
	Keys  []AddressKey `json:"keys"`
}

// User is the account whose addresses and keys anchor the trust decisions.
type User struct {
	BaseDocument   `json:",inline"`
	ID_            string        `json:"userId,omitempty"`
	EncryptedEmail string        `json:"encryptedEmail,omitempty"` // base64 scrypt hashed email
	Addresses      []UserAddress `json:"addresses"`
	Created        int64         `json:"created,omitempty"`
}

// AddressFor returns the owned address matching email, or nil.
// Matching is exact, no normalization.
func (u *User) AddressFor(email string) *UserAddress {
	for i := range u.Addresses {
		if u.Addresses[i].Email == email {
			return &u.Addresses[i]
		}
	}
	return nil
}

// NotCompromisedKeys returns the armored public keys of the address whose
// not-compromised flag is set, in original order.
func (a *UserAddress) NotCompromisedKeys() []string {
	keys := make([]string, 0, len(a.Keys))
	for _, k := range a.Keys {
		if k.Flags&KeyStateNotCompromised != 0 {
			keys = append(keys, k.PublicKey)
		}
	}
	return keys
}

// PublicKeys returns all armored public keys of the address in order.
func (a *UserAddress) PublicKeys() []string {
	keys := make([]string, 0, len(a.Keys))
	for _, k := range a.Keys {
		keys = append(keys, k.PublicKey)
	}
	return keys
}
