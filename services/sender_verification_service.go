package services

import (
	"context"
	"sync"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/go-kit/log/level"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/metrics"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
	"golang.org/x/sync/errgroup"
)

const (
	// at most this many attachment downloads run at once, and the whole
	// fan-out is cut off by attachmentFetchTimeout; a single stuck download
	// must never stall the verification indefinitely
	attachmentFetchParallelism = 4
	attachmentFetchTimeout     = 30 * time.Second
)

// SenderVerificationService checks whether a received message was really
// signed by its claimed sender: resolve the senders trusted keys, verify
// the detached body signature, and as a last resort recover candidate keys
// from the messages own attachments.
type SenderVerificationService struct {
	verificationKeysService *VerificationKeysService
	attachmentService       *AttachmentService
}

func NewSenderVerificationService(verificationKeysService *VerificationKeysService, attachmentService *AttachmentService) *SenderVerificationService {
	return &SenderVerificationService{
		verificationKeysService: verificationKeysService,
		attachmentService:       attachmentService,
	}
}

// VerifyMessageSender resolves keys for the claimed sender and verifies the
// detached signature over the message body. Keys from pinning or the
// directory verify the sender; keys recovered from attachments only prove
// signature consistency, not sender identity.
func (svs *SenderVerificationService) VerifyMessageSender(ctx context.Context, user *types.User, input *types.InputVerifySender) (*types.VerificationResult, error) {
	pinned, keysResponse, kErr := svs.verificationKeysService.FetchVerificationKeys(ctx, user, input.SenderEmail)
	if kErr != nil {
		// degrade to whatever local trust we have rather than refusing a verdict
		level.Warn(global.Logger).Log("msg", "key resolution degraded for sender check", "email", input.SenderEmail, "err", kErr)
	}

	trustedKeys := append([]string{}, pinned...)
	if keysResponse != nil {
		for _, entry := range keysResponse.ValidKeys() {
			trustedKeys = append(trustedKeys, entry.PublicKey)
		}
	}

	if fingerprint, ok := verifyAgainst(trustedKeys, []byte(input.Body), input.BodySignature); ok {
		metrics.SenderVerifiedMetricsCount.Inc()
		return &types.VerificationResult{
			SenderVerified: true,
			SignatureValid: true,
			KeyFingerprint: fingerprint,
		}, nil
	}

	// nothing trusted verified; try keys attached inline to the message
	attachedKeys := svs.recoverAttachedKeys(ctx, input.Attachments)
	if fingerprint, ok := verifyAgainst(attachedKeys, []byte(input.Body), input.BodySignature); ok {
		return &types.VerificationResult{
			SenderVerified: false, // attached keys carry no provenance
			SignatureValid: true,
			KeyFingerprint: fingerprint,
			Reason:         "signature matches a key attached to the message, sender identity unproven",
		}, nil
	}

	reason := "signature did not verify against any resolved key"
	if len(trustedKeys) == 0 && len(attachedKeys) == 0 {
		reason = "no keys available for the sender"
	}
	return &types.VerificationResult{
		SenderVerified: false,
		SignatureValid: false,
		Reason:         reason,
	}, nil
}

// recoverAttachedKeys downloads the referenced attachments with a bounded
// concurrent join and keeps everything that parses as a public key.
// Individual download failures contribute nothing to the aggregate.
func (svs *SenderVerificationService) recoverAttachedKeys(ctx context.Context, attachments []types.AttachmentReference) []string {
	if len(attachments) == 0 {
		return nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, attachmentFetchTimeout)
	defer cancel()

	var mu sync.Mutex
	var keys []string

	g, gCtx := errgroup.WithContext(fetchCtx)
	g.SetLimit(attachmentFetchParallelism)
	for _, attachment := range attachments {
		attachment := attachment
		g.Go(func() error {
			data, dErr := svs.attachmentService.DownloadAttachment(gCtx, attachment.AttachmentID)
			if dErr != nil {
				level.Warn(global.Logger).Log("msg", "attachment fetch failed", "attachmentId", attachment.AttachmentID, "err", dErr)
				return nil // failures only reduce candidates
			}
			armored, pErr := parseAttachedKey(data)
			if pErr != nil {
				return nil
			}
			mu.Lock()
			keys = append(keys, armored)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return keys
}

// parseAttachedKey accepts either an armored or a raw binary key blob.
func parseAttachedKey(data []byte) (string, error) {
	key, kErr := crypto.NewKeyFromArmored(string(data))
	if kErr != nil {
		key, kErr = crypto.NewKey(data)
		if kErr != nil {
			return "", kErr
		}
	}
	if key.IsExpired() {
		return "", types.ErrBadRequest
	}
	return key.GetArmoredPublicKey()
}

// verifyAgainst tries each key individually so the matching fingerprint is
// known, preserving OR semantics across the set.
func verifyAgainst(armoredKeys []string, body []byte, signature string) (string, bool) {
	for _, armored := range armoredKeys {
		if util.VerifyDetachedSignature([]string{armored}, body, signature) {
			fingerprint, fErr := util.FingerprintOfArmored(armored)
			if fErr != nil {
				fingerprint = ""
			}
			return fingerprint, true
		}
	}
	return "", false
}
