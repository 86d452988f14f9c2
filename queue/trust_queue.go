package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/metrics"
	"github.com/mailtrust/go-mailtrust-server/repository"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
)

const defaultScanTimeout = 5 * time.Minute

// TrustQueue processes the background trust maintenance tasks: refreshing
// contact detail from the remote contacts API and re-scanning pinned keys
// against the directorys compromise flags.
type TrustQueue struct {
	contactService      *services.ContactService
	keyDirectoryService *services.KeyDirectoryService
	env                 *types.Environment
}

func NewTrustQueue(dbSelector *repository.CouchDBSelector, env *types.Environment) *TrustQueue {
	contactService := services.NewContactService(dbSelector, env)
	keyDirectoryService := services.NewKeyDirectoryService(env)
	return &TrustQueue{
		contactService:      contactService,
		keyDirectoryService: keyDirectoryService,
		env:                 env,
	}
}

// ProcessContactRefreshTask re-fetches a contacts remote detail.
func (tq *TrustQueue) ProcessContactRefreshTask(ctx context.Context, t *asynq.Task) error {
	var task types.ContactRefreshTask
	if err := cbor.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("cbor.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if rErr := tq.contactService.RefreshContact(ctx, task.OwnerAddress, task.Email); rErr != nil {
		if rErr == types.ErrNotFound {
			// nothing upstream for this contact, do not retry
			return nil
		}
		return rErr
	}
	metrics.ContactRefreshMetricsCount.Inc()
	return nil
}

// ProcessKeyRecheckTask re-fetches the directory entry for a contact with
// pinned keys and counts fingerprints that turned compromised since
// pinning. The pinned keys themselves stay untouched: filtering happens at
// resolution time, this scan only surfaces the drift.
func (tq *TrustQueue) ProcessKeyRecheckTask(ctx context.Context, t *asynq.Task) error {
	var task types.KeyRecheckTask
	if err := cbor.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("cbor.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	cards, cErr := tq.contactService.GetContactCards(ctx, task.OwnerAddress, task.Email)
	if cErr != nil {
		if cErr == types.ErrNotFound {
			return nil
		}
		return cErr
	}

	pinnedFingerprints := pinnedKeyFingerprints(cards)
	if len(pinnedFingerprints) == 0 {
		return nil
	}

	keysResponse, kErr := tq.keyDirectoryService.FetchPublicKeys(ctx, task.Email)
	if kErr != nil {
		// transient directory failures retry with backoff
		return kErr
	}

	for _, entry := range keysResponse.Keys {
		if !entry.IsCompromised() {
			continue
		}
		key, pErr := crypto.NewKeyFromArmored(entry.PublicKey)
		if pErr != nil {
			continue
		}
		if _, pinned := pinnedFingerprints[key.GetFingerprint()]; pinned {
			metrics.CompromisedPinnedKeysMetricsCount.Inc()
			level.Warn(global.Logger).Log(
				"msg", "pinned key reported compromised by directory",
				"email", task.Email,
				"fingerprint", key.GetFingerprint(),
			)
		}
	}
	return nil
}

// EnqueueKeyRechecks schedules a re-scan for every stored contact. Driven
// by the cron schedule in setup.
func (tq *TrustQueue) EnqueueKeyRechecks() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultScanTimeout)
	defer cancel()

	const pageSize = 100
	for skip := 0; ; skip += pageSize {
		contacts, lErr := tq.contactService.ListAll(ctx, pageSize, skip)
		if lErr != nil {
			level.Error(global.Logger).Log("msg", "contact scan failed", "err", lErr)
			return
		}
		if len(contacts) == 0 {
			return
		}
		for _, contact := range contacts {
			task, tErr := types.NewKeyRecheckTask(&types.KeyRecheckTask{
				OwnerAddress: contact.OwnerAddress,
				Email:        contact.Email,
			})
			if tErr != nil {
				continue
			}
			if _, qErr := tq.env.TaskClient.Enqueue(task); qErr != nil {
				level.Warn(global.Logger).Log("msg", "failed to enqueue key recheck", "email", contact.Email, "err", qErr)
			}
		}
		if len(contacts) < pageSize {
			return
		}
	}
}

// pinnedKeyFingerprints extracts the fingerprints of every key pinned in
// any signed card, without verifying signatures: the scan wants raw drift
// against the directory, verification is the resolvers job.
func pinnedKeyFingerprints(cards *types.ContactCards) map[string]struct{} {
	fingerprints := map[string]struct{}{}
	for _, card := range cards.Cards {
		if card.Type != types.CardTypeSignedOnly {
			continue
		}
		pre := util.ParseCardPayload(cards.Email, card.Data)
		if pre == nil {
			continue
		}
		for _, raw := range pre.PublicKeys {
			key, kErr := crypto.NewKey(raw)
			if kErr != nil {
				continue
			}
			fingerprints[key.GetFingerprint()] = struct{}{}
		}
	}
	return fingerprints
}
