package util

import (
	"encoding/base64"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/emersion/go-vcard"
	"github.com/go-kit/log/level"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/types"
)

// vCard extension properties carrying per-contact sending preferences
const (
	fieldPMSign     = "X-PM-SIGN"
	fieldPMEncrypt  = "X-PM-ENCRYPT"
	fieldPMScheme   = "X-PM-SCHEME"
	fieldPMMIMEType = "X-PM-MIMETYPE"
)

// VerifyAndParseContact authenticates the signed-only card of a contact
// record against the owners own keys and extracts the sending preferences
// for the given email address. First verifying card with a matching email
// entry wins; cards that fail verification are skipped silently so that an
// invalid card never blocks fallback to unverified defaults. Returns nil
// when no card yields a match.
//
// Pure over its inputs apart from the wall clock used for signature and
// key-expiry reference time.
func VerifyAndParseContact(email string, cards []types.CardData, verifierKeys []string) *types.PreContact {
	for _, card := range cards {
		switch card.Type {
		case types.CardTypeSignedOnly:
			// handled below
		case types.CardTypePlainText, types.CardTypeEncryptedOnly, types.CardTypeSignAndEncrypt:
			// these card variants carry independent trust mechanics, skip
			continue
		default:
			continue
		}

		if !VerifyDetachedSignature(verifierKeys, []byte(card.Data), card.Signature) {
			continue
		}

		preContact := ParseCardPayload(email, card.Data)
		if preContact != nil {
			return preContact
		}
	}
	return nil
}

// ParseCardPayload reads a vCard payload and builds the PreContact for
// email, scoped to the group tag of the matching EMAIL entry. Callers
// wanting trusted output must verify the cards signature first;
// VerifyAndParseContact does both.
func ParseCardPayload(email, payload string) *types.PreContact {
	dec := vcard.NewDecoder(strings.NewReader(payload))
	card, dErr := dec.Decode()
	if dErr != nil {
		level.Warn(global.Logger).Log("msg", "unparseable contact card payload", "err", dErr)
		return nil
	}

	// exact match only, no normalization
	var group string
	found := false
	for _, field := range card[vcard.FieldEmail] {
		if field.Value == email {
			group = field.Group
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	preContact := &types.PreContact{
		Email:    email,
		Sign:     types.SignStatusNotFound,
		Encrypt:  false,
		Scheme:   groupedValue(card, fieldPMScheme, group),
		MIMEType: groupedValue(card, fieldPMMIMEType, group),
	}

	switch groupedValue(card, fieldPMSign, group) {
	case "true":
		preContact.Sign = types.SignStatusSign
	case "false":
		preContact.Sign = types.SignStatusDoNotSign
	}
	// anything but exactly "true" stays false
	preContact.Encrypt = groupedValue(card, fieldPMEncrypt, group) == "true"

	for _, field := range card[vcard.FieldKey] {
		if field.Group != group {
			continue
		}
		raw, kErr := decodeKeyValue(field.Value)
		if kErr != nil {
			level.Warn(global.Logger).Log("msg", "dropping undecodable pinned key", "email", email, "err", kErr)
			continue
		}
		key, pErr := crypto.NewKey(raw)
		if pErr != nil {
			level.Warn(global.Logger).Log("msg", "dropping unparseable pinned key", "email", email, "err", pErr)
			continue
		}
		if key.IsExpired() {
			level.Warn(global.Logger).Log("msg", "dropping expired pinned key", "email", email, "fingerprint", key.GetFingerprint())
			continue
		}
		preContact.PublicKeys = append(preContact.PublicKeys, raw)
	}

	return preContact
}

// groupedValue returns the value of the first field with the given name
// scoped to the group tag, or "" when absent.
func groupedValue(card vcard.Card, fieldName, group string) string {
	for _, field := range card[fieldName] {
		if field.Group == group {
			return field.Value
		}
	}
	return ""
}

// decodeKeyValue decodes a vCard KEY value, either a bare base64 blob or a
// data URL ("data:application/pgp-keys;base64,...").
func decodeKeyValue(value string) ([]byte, error) {
	if idx := strings.Index(value, "base64,"); idx >= 0 {
		value = value[idx+len("base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(value))
}
