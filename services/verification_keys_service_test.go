package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/jarcoal/httpmock"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/repository"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

var couchURL = "http://localhost:5799"
var keyDirURL = "http://keydir.local"

func newTestEnv() *types.Environment {
	// nothing listens here, cache reads and writes fail soft
	rc := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return types.NewEnvironment(rc)
}

func newMockSelector(t *testing.T) *repository.CouchDBSelector {
	t.Helper()
	for _, dbName := range []string{repository.ContactCards, repository.User} {
		httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", couchURL, dbName),
			httpmock.NewStringResponder(200, ""))
	}
	contactRepo, cErr := repository.NewCouchDBRepository(couchURL, repository.ContactCards, "test", "test", true)
	if cErr != nil {
		t.Fatal(cErr)
	}
	userRepo, uErr := repository.NewCouchDBRepository(couchURL, repository.User, "test", "test", true)
	if uErr != nil {
		t.Fatal(uErr)
	}
	selector := repository.NewCouchDBSelector()
	selector.AddDB(contactRepo)
	selector.AddDB(userRepo)
	return selector
}

func newTestResolver(t *testing.T, env *types.Environment) (*VerificationKeysService, *ContactService, *KeyDirectoryService) {
	t.Helper()
	global.Conf.MailTrust.KeyDirectoryURL = keyDirURL
	global.Conf.MailTrust.ContactsAPIURL = "http://contacts.local"

	selector := newMockSelector(t)
	contactService := NewContactService(selector, env)
	keyDirectoryService := NewKeyDirectoryService(env)
	httpmock.ActivateNonDefault(contactService.Client().GetClient())
	httpmock.ActivateNonDefault(keyDirectoryService.Client().GetClient())
	return NewVerificationKeysService(contactService, keyDirectoryService), contactService, keyDirectoryService
}

func testUser(t *testing.T, email string, ownerKey *crypto.Key) *types.User {
	t.Helper()
	armoredPublic, err := ownerKey.GetArmoredPublicKey()
	if err != nil {
		t.Fatal(err)
	}
	return &types.User{
		ID_: email,
		Addresses: []types.UserAddress{{
			Email: email,
			Keys: []types.AddressKey{{
				PublicKey: armoredPublic,
				Flags:     types.KeyStateNotCompromised | types.KeyStateActive,
				Primary:   true,
			}},
		}},
	}
}

// signedPinningCard builds a signed vCard card pinning pinnedKey for email.
func signedPinningCard(t *testing.T, ownerKey *crypto.Key, email string, pinnedKey *crypto.Key) types.CardData {
	t.Helper()
	rawPinned, rErr := pinnedKey.GetPublicKey()
	if rErr != nil {
		t.Fatal(rErr)
	}
	payload := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"ITEM1.EMAIL:" + email,
		"ITEM1.X-PM-ENCRYPT:true",
		"ITEM1.KEY:data:application/pgp-keys;base64," + base64.StdEncoding.EncodeToString(rawPinned),
		"END:VCARD",
	}, "\r\n") + "\r\n"

	armoredPrivate, aErr := ownerKey.Armor()
	if aErr != nil {
		t.Fatal(aErr)
	}
	signature, sErr := util.SignDetached(armoredPrivate, nil, []byte(payload))
	if sErr != nil {
		t.Fatal(sErr)
	}
	return types.CardData{Type: types.CardTypeSignedOnly, Data: payload, Signature: signature}
}

func registerContactRecord(t *testing.T, owner, email string, cards ...types.CardData) {
	t.Helper()
	record := types.ContactCards{OwnerAddress: owner, Email: email, Cards: cards, Created: 1}
	body, mErr := json.Marshal(record)
	if mErr != nil {
		t.Fatal(mErr)
	}
	httpmock.RegisterResponder("GET",
		fmt.Sprintf("%s/%s/%s", couchURL, repository.ContactCards, ContactDocID(owner, email)),
		httpmock.NewStringResponder(200, string(body)))
}

func registerDirectoryKeys(t *testing.T, recipientType types.RecipientType, entries ...types.PublicKeyEntry) {
	t.Helper()
	body, mErr := json.Marshal(map[string]interface{}{
		"keys":          entries,
		"recipientType": recipientType,
	})
	if mErr != nil {
		t.Fatal(mErr)
	}
	httpmock.RegisterResponder("GET", keyDirURL+"/api/v1/keys",
		httpmock.NewStringResponder(200, string(body)).
			HeaderSet(http.Header{"Content-Type": []string{"application/json"}}))
}

func TestFetchVerificationKeysSelfAddress(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	vks, _, _ := newTestResolver(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	httpmock.ZeroCallCounters()
	pinned, keysResponse, err := vks.FetchVerificationKeys(context.Background(), user, "owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	assert.Nil(t, keysResponse)
	assert.Equal(t, 1, len(pinned))
	ownPublic, _ := ownerKey.GetArmoredPublicKey()
	assert.Equal(t, ownPublic, pinned[0])
	// no contact or directory lookups for an own address
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestFetchVerificationKeysPinnedKeySurvives(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	pinnedKey := generateTestKey(t, "bob@external.example")
	apiKey := generateTestKey(t, "bob@external.example")
	vks, _, _ := newTestResolver(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	registerContactRecord(t, user.ID_, "bob@external.example",
		signedPinningCard(t, ownerKey, "bob@external.example", pinnedKey))
	apiArmored, _ := apiKey.GetArmoredPublicKey()
	registerDirectoryKeys(t, types.RecipientTypeExternal,
		types.PublicKeyEntry{PublicKey: apiArmored, Flags: types.KeyStateNotCompromised | types.KeyStateActive})

	pinned, keysResponse, err := vks.FetchVerificationKeys(context.Background(), user, "bob@external.example")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(pinned))
	fingerprint, fErr := util.FingerprintOfArmored(pinned[0])
	if fErr != nil {
		t.Fatal(fErr)
	}
	assert.Equal(t, pinnedKey.GetFingerprint(), fingerprint)
	assert.Equal(t, 1, len(keysResponse.ValidKeys()))
}

func TestFetchVerificationKeysDropsCompromisedPinnedKey(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	pinnedKey := generateTestKey(t, "bob@external.example")
	vks, _, _ := newTestResolver(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	registerContactRecord(t, user.ID_, "bob@external.example",
		signedPinningCard(t, ownerKey, "bob@external.example", pinnedKey))
	// the directory reports the pinned key without the not-compromised bit
	pinnedArmored, _ := pinnedKey.GetArmoredPublicKey()
	registerDirectoryKeys(t, types.RecipientTypeExternal,
		types.PublicKeyEntry{PublicKey: pinnedArmored, Flags: types.KeyStateActive})

	pinned, keysResponse, err := vks.FetchVerificationKeys(context.Background(), user, "bob@external.example")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, len(pinned))
	assert.Equal(t, 0, len(keysResponse.ValidKeys()))
}

func TestFetchVerificationKeysContactMissSoft(t *testing.T) {
	defer httpmock.DeactivateAndReset()
	env := newTestEnv()
	ownerKey := generateTestKey(t, "owner@example.com")
	apiKey := generateTestKey(t, "carol@external.example")
	vks, _, _ := newTestResolver(t, env)
	user := testUser(t, "owner@example.com", ownerKey)

	// no local record, remote contacts API knows nothing either
	httpmock.RegisterResponder("GET",
		fmt.Sprintf("%s/%s/%s", couchURL, repository.ContactCards, ContactDocID(user.ID_, "carol@external.example")),
		httpmock.NewStringResponder(404, `{"error":"not_found"}`))
	httpmock.RegisterResponder("GET", global.Conf.MailTrust.ContactsAPIURL+"/api/v1/contacts",
		httpmock.NewStringResponder(404, `{"error":"not found"}`))

	apiArmored, _ := apiKey.GetArmoredPublicKey()
	registerDirectoryKeys(t, types.RecipientTypeExternal,
		types.PublicKeyEntry{PublicKey: apiArmored, Flags: types.KeyStateNotCompromised | types.KeyStateActive})

	pinned, keysResponse, err := vks.FetchVerificationKeys(context.Background(), user, "carol@external.example")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, len(pinned))
	assert.Equal(t, 1, len(keysResponse.ValidKeys()))
}
