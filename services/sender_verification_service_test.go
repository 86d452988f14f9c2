package services

import (
	"context"
	"testing"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/jarcoal/httpmock"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
	"github.com/stretchr/testify/assert"
)

func newVerifier(t *testing.T, env *types.Environment) *SenderVerificationService {
	t.Helper()
	vks, _, _ := newTestResolver(t, env)
	return NewSenderVerificationService(vks, NewAttachmentService(env))
}

func signBody(t *testing.T, key *crypto.Key, body string) string {
	t.Helper()
	armoredPrivate, aErr := key.Armor()
	if aErr != nil {
		t.Fatal(aErr)
	}
	signature, sErr := util.SignDetached(armoredPrivate, nil, []byte(body))
	if sErr != nil {
		t.Fatal(sErr)
	}
	return signature
}

func TestVerifyMessageSenderWithPinnedKey(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	senderKey := generateTestKey(t, "bob@external.example")
	svs := newVerifier(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	registerContactRecord(t, user.ID_, "bob@external.example",
		signedPinningCard(t, ownerKey, "bob@external.example", senderKey))
	registerDirectoryKeys(t, types.RecipientTypeExternal)

	body := "a signed message body"
	result, err := svs.VerifyMessageSender(context.Background(), user, &types.InputVerifySender{
		SenderEmail:   "bob@external.example",
		OwnerAddress:  user.ID_,
		Body:          body,
		BodySignature: signBody(t, senderKey, body),
	})
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, result.SenderVerified)
	assert.True(t, result.SignatureValid)
	assert.Equal(t, senderKey.GetFingerprint(), result.KeyFingerprint)
}

func TestVerifyMessageSenderNoKeys(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	strangerKey := generateTestKey(t, "stranger@example.com")
	svs := newVerifier(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	httpmock.RegisterResponder("GET", "=~.*",
		httpmock.NewStringResponder(404, `{"error":"not found"}`))
	registerDirectoryKeys(t, types.RecipientTypeExternal)

	body := "a signed message body"
	result, err := svs.VerifyMessageSender(context.Background(), user, &types.InputVerifySender{
		SenderEmail:   "stranger@example.com",
		OwnerAddress:  user.ID_,
		Body:          body,
		BodySignature: signBody(t, strangerKey, body),
	})
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, result.SenderVerified)
	assert.False(t, result.SignatureValid)
	assert.Equal(t, "no keys available for the sender", result.Reason)
}

func TestVerifyMessageSenderWrongKey(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	pinnedKey := generateTestKey(t, "bob@external.example")
	otherKey := generateTestKey(t, "someone-else@example.com")
	svs := newVerifier(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	registerContactRecord(t, user.ID_, "bob@external.example",
		signedPinningCard(t, ownerKey, "bob@external.example", pinnedKey))
	registerDirectoryKeys(t, types.RecipientTypeExternal)

	body := "a signed message body"
	result, err := svs.VerifyMessageSender(context.Background(), user, &types.InputVerifySender{
		SenderEmail:   "bob@external.example",
		OwnerAddress:  user.ID_,
		Body:          body,
		BodySignature: signBody(t, otherKey, body),
	})
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, result.SenderVerified)
	assert.False(t, result.SignatureValid)
	assert.Equal(t, "signature did not verify against any resolved key", result.Reason)
}

func TestVerifyMessageSenderOwnAddress(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	svs := newVerifier(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	body := "note to self"
	httpmock.ZeroCallCounters()
	result, err := svs.VerifyMessageSender(context.Background(), user, &types.InputVerifySender{
		SenderEmail:   "owner@example.com",
		OwnerAddress:  user.ID_,
		Body:          body,
		BodySignature: signBody(t, ownerKey, body),
	})
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, result.SenderVerified)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
