package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/repository"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/stretchr/testify/assert"
)

type offline struct{}

func (offline) IsConnected() bool { return false }

func newIconService(t *testing.T, env *types.Environment) *SendPreferencesService {
	t.Helper()
	global.Conf.MailTrust.KeyDirectoryURL = keyDirURL
	global.Conf.MailTrust.ContactsAPIURL = "http://contacts.local"

	selector := newMockSelector(t)
	contactService := NewContactService(selector, env)
	keyDirectoryService := NewKeyDirectoryService(env)
	httpmock.ActivateNonDefault(contactService.Client().GetClient())
	httpmock.ActivateNonDefault(keyDirectoryService.Client().GetClient())
	return NewSendPreferencesService(contactService, keyDirectoryService, env)
}

func TestCalculateEncryptionIconOffline(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	global.Conf.MailTrust.InternalDomains = []string{"internal.example"}
	env := newTestEnv()
	env.Connectivity = offline{}
	sps := newIconService(t, env)
	user := testUser(t, "owner@internal.example", generateTestKey(t, "owner@internal.example"))

	httpmock.ZeroCallCounters()
	status, code := sps.CalculateEncryptionIcon(context.Background(), user, "alice@internal.example", false)
	assert.Nil(t, code)
	assert.Equal(t, types.IconColorBlue, status.IconColor)
	assert.Equal(t, types.StatusTextE2EEncrypted, status.Text)
	// offline resolution never touches the network
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestCalculateEncryptionIconRecipientNotFound(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	sps := newIconService(t, env)
	user := testUser(t, "owner@internal.example", generateTestKey(t, "owner@internal.example"))

	httpmock.RegisterResponder("GET", keyDirURL+"/api/v1/keys",
		httpmock.NewStringResponder(422, `{"code":33102,"error":"recipient could not be found"}`).
			HeaderSet(http.Header{"Content-Type": []string{"application/json"}}))

	status, code := sps.CalculateEncryptionIcon(context.Background(), user, "ghost@example.com", false)
	assert.NotNil(t, code)
	assert.Equal(t, 33102, *code)
	assert.Equal(t, types.StatusTextRecipientNotFound, status.Text)
	assert.True(t, status.IsInvalid)
	assert.True(t, status.NonExisting)
}

func TestCalculateEncryptionIconOnlineInternal(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	sps := newIconService(t, env)
	ownerKey := generateTestKey(t, "owner@internal.example")
	user := testUser(t, "owner@internal.example", ownerKey)

	recipientKey := generateTestKey(t, "alice@internal.example")
	armored, _ := recipientKey.GetArmoredPublicKey()
	registerDirectoryKeys(t, types.RecipientTypeInternal,
		types.PublicKeyEntry{PublicKey: armored, Flags: types.KeyStateNotCompromised | types.KeyStateActive})

	// no local contact record
	httpmock.RegisterResponder("GET",
		fmt.Sprintf("%s/%s/%s", couchURL, repository.ContactCards, ContactDocID(user.ID_, "alice@internal.example")),
		httpmock.NewStringResponder(404, `{"error":"not_found"}`))
	httpmock.RegisterResponder("GET", global.Conf.MailTrust.ContactsAPIURL+"/api/v1/contacts",
		httpmock.NewStringResponder(404, `{"error":"not found"}`))

	status, code := sps.CalculateEncryptionIcon(context.Background(), user, "alice@internal.example", false)
	assert.Nil(t, code)
	assert.Equal(t, types.IconColorBlue, status.IconColor)
	assert.Equal(t, types.StatusTextE2EEncrypted, status.Text)
	assert.False(t, status.IsPGPPinned)
}
