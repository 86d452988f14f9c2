package services

import (
	"context"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/go-kit/log/level"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/types"
	"golang.org/x/sync/errgroup"
)

// VerificationKeysService resolves the set of keys a message from (or to)
// an email address may be verified or encrypted against: the users own
// address keys for self addresses, otherwise verified pinned contact keys
// filtered by the directorys compromise flags, plus the directory response
// itself.
type VerificationKeysService struct {
	contactService      *ContactService
	keyDirectoryService *KeyDirectoryService
}

func NewVerificationKeysService(contactService *ContactService, keyDirectoryService *KeyDirectoryService) *VerificationKeysService {
	return &VerificationKeysService{
		contactService:      contactService,
		keyDirectoryService: keyDirectoryService,
	}
}

// FetchVerificationKeys resolves pinned keys and the directory entry for
// email on behalf of user.
//
// Self addresses short-circuit: the addresses own non-compromised keys come
// back with a nil KeysResponse and no network call is made. For everyone
// else the verified local contact and the remote directory are fetched
// concurrently; a contact miss is swallowed (contacts are optional
// enrichment), a directory transport failure is the only outward error.
//
// Pinned keys whose fingerprint the directory reports compromised are
// dropped. When the directory returned nothing there is no compromise set
// to check against and locally pinned keys pass through untouched
// (offline-first trust, deliberate).
func (vks *VerificationKeysService) FetchVerificationKeys(ctx context.Context, user *types.User, email string) ([]string, *types.KeysResponse, error) {
	if ownAddress := user.AddressFor(email); ownAddress != nil {
		return ownAddress.NotCompromisedKeys(), nil, nil
	}

	var preContacts []*types.PreContact
	var keysResponse *types.KeysResponse

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// never fails outward, a miss means no local contact
		preContacts = vks.contactService.FetchAndVerifyContacts(gCtx, user, []string{email})
		return nil
	})
	g.Go(func() error {
		kr, kErr := vks.keyDirectoryService.FetchPublicKeys(gCtx, email)
		if kErr != nil {
			return kErr
		}
		keysResponse = kr
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(preContacts) == 0 {
		return []string{}, keysResponse, nil
	}

	pinned := filterPinnedKeys(email, preContacts[0].PublicKeys, compromisedFingerprints(keysResponse))
	return pinned, keysResponse, nil
}

// compromisedFingerprints collects fingerprints of directory keys whose
// not-compromised flag is absent.
func compromisedFingerprints(keysResponse *types.KeysResponse) map[string]struct{} {
	compromised := map[string]struct{}{}
	if keysResponse == nil {
		return compromised
	}
	for _, entry := range keysResponse.Keys {
		if !entry.IsCompromised() {
			continue
		}
		key, kErr := crypto.NewKeyFromArmored(entry.PublicKey)
		if kErr != nil {
			level.Warn(global.Logger).Log("msg", "unparseable directory key", "err", kErr)
			continue
		}
		compromised[key.GetFingerprint()] = struct{}{}
	}
	return compromised
}

// filterPinnedKeys keeps pinned keys that parse, are not in the compromised
// set and re-armor cleanly. Original order preserved, pure set difference,
// no ranking.
func filterPinnedKeys(email string, rawKeys [][]byte, compromised map[string]struct{}) []string {
	pinned := make([]string, 0, len(rawKeys))
	for _, raw := range rawKeys {
		key, kErr := crypto.NewKey(raw)
		if kErr != nil {
			level.Warn(global.Logger).Log("msg", "dropping unparseable pinned key", "email", email, "err", kErr)
			continue
		}
		if _, isCompromised := compromised[key.GetFingerprint()]; isCompromised {
			level.Warn(global.Logger).Log("msg", "dropping compromised pinned key", "email", email, "fingerprint", key.GetFingerprint())
			continue
		}
		armored, aErr := key.GetArmoredPublicKey()
		if aErr != nil {
			level.Warn(global.Logger).Log("msg", "dropping pinned key, re-armor failed", "email", email, "err", aErr)
			continue
		}
		pinned = append(pinned, armored)
	}
	return pinned
}
