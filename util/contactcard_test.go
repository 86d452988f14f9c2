package util

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/tj/assert"
)

// buildCardPayload assembles a vCard with the preference properties scoped
// to the group of the EMAIL entry.
func buildCardPayload(email string, props map[string]string, rawKeys [][]byte) string {
	lines := []string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"FN:Test Contact",
		"ITEM1.EMAIL:" + email,
	}
	for name, value := range props {
		lines = append(lines, "ITEM1."+name+":"+value)
	}
	for _, raw := range rawKeys {
		lines = append(lines, "ITEM1.KEY:data:application/pgp-keys;base64,"+base64.StdEncoding.EncodeToString(raw))
	}
	lines = append(lines, "END:VCARD")
	return strings.Join(lines, "\r\n") + "\r\n"
}

func signedCard(t *testing.T, ownerKey *crypto.Key, payload string) types.CardData {
	t.Helper()
	armoredPrivate, err := ownerKey.Armor()
	if err != nil {
		t.Fatal(err)
	}
	signature, err := SignDetached(armoredPrivate, nil, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	return types.CardData{
		Type:      types.CardTypeSignedOnly,
		Data:      payload,
		Signature: signature,
	}
}

func TestVerifyAndParseContact(t *testing.T) {
	ownerKey := generateTestKey(t, "owner@example.com")
	ownerPublic, _ := ownerKey.GetArmoredPublicKey()

	pinnedKey := generateTestKey(t, "alice@example.com")
	rawPinned, err := pinnedKey.GetPublicKey()
	if err != nil {
		t.Fatal(err)
	}

	payload := buildCardPayload("alice@example.com", map[string]string{
		"X-PM-SIGN":     "true",
		"X-PM-ENCRYPT":  "true",
		"X-PM-SCHEME":   "pgp-mime",
		"X-PM-MIMETYPE": "text/plain",
	}, [][]byte{rawPinned})
	card := signedCard(t, ownerKey, payload)

	pre := VerifyAndParseContact("alice@example.com", []types.CardData{card}, []string{ownerPublic})
	if pre == nil {
		t.Fatal("expected a parsed contact")
	}
	assert.Equal(t, "alice@example.com", pre.Email)
	assert.Equal(t, types.SignStatusSign, pre.Sign)
	assert.True(t, pre.Encrypt)
	assert.Equal(t, "pgp-mime", pre.Scheme)
	assert.Equal(t, "text/plain", pre.MIMEType)
	assert.Equal(t, 1, len(pre.PublicKeys))

	parsed, pErr := crypto.NewKey(pre.PublicKeys[0])
	if pErr != nil {
		t.Fatal(pErr)
	}
	assert.Equal(t, pinnedKey.GetFingerprint(), parsed.GetFingerprint())
}

func TestVerifyAndParseContactRejectsBadSignature(t *testing.T) {
	ownerKey := generateTestKey(t, "owner@example.com")
	ownerPublic, _ := ownerKey.GetArmoredPublicKey()

	payload := buildCardPayload("alice@example.com", map[string]string{"X-PM-ENCRYPT": "true"}, nil)
	card := signedCard(t, ownerKey, payload)
	card.Data = strings.Replace(card.Data, "true", "false", 1)

	pre := VerifyAndParseContact("alice@example.com", []types.CardData{card}, []string{ownerPublic})
	assert.Nil(t, pre)
}

func TestVerifyAndParseContactIgnoresOtherCardTypes(t *testing.T) {
	ownerKey := generateTestKey(t, "owner@example.com")
	ownerPublic, _ := ownerKey.GetArmoredPublicKey()

	payload := buildCardPayload("alice@example.com", map[string]string{"X-PM-ENCRYPT": "true"}, nil)
	cards := []types.CardData{
		{Type: types.CardTypePlainText, Data: payload},
		{Type: types.CardTypeEncryptedOnly, Data: payload},
		{Type: types.CardTypeSignAndEncrypt, Data: payload},
	}
	pre := VerifyAndParseContact("alice@example.com", cards, []string{ownerPublic})
	assert.Nil(t, pre)
}

func TestVerifyAndParseContactSkipsInvalidCard(t *testing.T) {
	ownerKey := generateTestKey(t, "owner@example.com")
	ownerPublic, _ := ownerKey.GetArmoredPublicKey()

	payload := buildCardPayload("alice@example.com", map[string]string{"X-PM-SIGN": "false"}, nil)
	bad := types.CardData{Type: types.CardTypeSignedOnly, Data: payload, Signature: "garbage"}
	good := signedCard(t, ownerKey, payload)

	pre := VerifyAndParseContact("alice@example.com", []types.CardData{bad, good}, []string{ownerPublic})
	if pre == nil {
		t.Fatal("expected the second card to win")
	}
	assert.Equal(t, types.SignStatusDoNotSign, pre.Sign)
}

func TestParseCardPayloadSignAbsent(t *testing.T) {
	payload := buildCardPayload("alice@example.com", map[string]string{}, nil)
	pre := ParseCardPayload("alice@example.com", payload)
	if pre == nil {
		t.Fatal("expected a parsed contact")
	}
	assert.Equal(t, types.SignStatusNotFound, pre.Sign)
	assert.False(t, pre.Encrypt)
}

func TestParseCardPayloadEmailMismatch(t *testing.T) {
	payload := buildCardPayload("alice@example.com", map[string]string{"X-PM-SIGN": "true"}, nil)
	// exact match only, no case folding
	assert.Nil(t, ParseCardPayload("Alice@example.com", payload))
	assert.Nil(t, ParseCardPayload("bob@example.com", payload))
}

func TestParseCardPayloadDropsUndecodableKey(t *testing.T) {
	payload := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"ITEM1.EMAIL:alice@example.com",
		"ITEM1.KEY:data:application/pgp-keys;base64,%%%not-base64%%%",
		"END:VCARD",
	}, "\r\n") + "\r\n"

	pre := ParseCardPayload("alice@example.com", payload)
	if pre == nil {
		t.Fatal("expected a parsed contact")
	}
	assert.Equal(t, 0, len(pre.PublicKeys))
}

func TestParseCardPayloadIdempotent(t *testing.T) {
	pinnedKey := generateTestKey(t, "alice@example.com")
	rawPinned, _ := pinnedKey.GetPublicKey()
	payload := buildCardPayload("alice@example.com", map[string]string{
		"X-PM-SIGN":    "true",
		"X-PM-ENCRYPT": "true",
	}, [][]byte{rawPinned})

	first := ParseCardPayload("alice@example.com", payload)
	second := ParseCardPayload("alice@example.com", payload)
	assert.Equal(t, first, second)
}
