package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/go-kit/log/level"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/metrics"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
)

// contact card scheme values
const (
	schemePGPMIME   = "pgp-mime"
	schemePGPInline = "pgp-inline"
)

// SendPreferencesService merges verified contact preferences, the key
// directory response, the servers default signing preference and the
// message constraints into the final per-recipient send decision, and maps
// that decision onto the encryption status icon shown next to a recipient.
type SendPreferencesService struct {
	contactService      *ContactService
	keyDirectoryService *KeyDirectoryService
	env                 *types.Environment
}

func NewSendPreferencesService(contactService *ContactService, keyDirectoryService *KeyDirectoryService, env *types.Environment) *SendPreferencesService {
	return &SendPreferencesService{
		contactService:      contactService,
		keyDirectoryService: keyDirectoryService,
		env:                 env,
	}
}

// CalculateEncryptionIcon resolves the encryption status icon for a
// recipient. Offline the result is computed locally and must never show a
// false trust signal; online the key directory decides, with recognized
// directory error codes mapped to fixed icon/text pairs and passed through.
// The second return value is the client-facing numeric error code, if any.
func (sps *SendPreferencesService) CalculateEncryptionIcon(ctx context.Context, user *types.User, email string, isMessagePassword bool) (*types.EncryptionIconStatus, *int) {
	if !sps.env.Connectivity.IsConnected() {
		return sps.CalculateEncryptionIconLocally(email)
	}

	keysResponse, kErr := sps.keyDirectoryService.FetchPublicKeys(ctx, email)
	if kErr != nil {
		var dirErr *KeyDirectoryError
		if errors.As(kErr, &dirErr) {
			return mapDirectoryError(dirErr)
		}
		// unrecognized failure: local syntax validation decides between
		// "recipient not found" and a generic error
		if !util.IsValidEmailSyntax(email) {
			code := int(types.PGPTypeErrorRecipientNotFound)
			return &types.EncryptionIconStatus{
				IconColor:   types.IconColorError,
				Text:        types.StatusTextRecipientNotFound,
				IsInvalid:   true,
				NonExisting: true,
			}, &code
		}
		return &types.EncryptionIconStatus{
			IconColor: types.IconColorError,
			Text:      types.StatusTextResolutionFailed,
			IsInvalid: true,
		}, nil
	}

	preferences := sps.resolveOnline(ctx, user, email, keysResponse, isMessagePassword)
	status := mapPreferencesToIcon(preferences, keysResponse.IsInternal())
	metrics.EncryptionIconResolvedMetricsCount.Inc()
	return status, nil
}

// CalculateEncryptionIconLocally is the degraded, no-connectivity path.
// A first-party domain is reported end-to-end encrypted on domain
// membership alone; a syntactically invalid address is reported invalid;
// anything else yields no status so the caller cannot display a false
// trust signal.
func (sps *SendPreferencesService) CalculateEncryptionIconLocally(email string) (*types.EncryptionIconStatus, *int) {
	domain := util.ExtractDomain(email)
	if domain != "" && global.IsInternalDomain(domain) {
		return &types.EncryptionIconStatus{
			IconColor: types.IconColorBlue,
			Text:      types.StatusTextE2EEncrypted,
		}, nil
	}
	if !util.IsValidEmailSyntax(email) {
		code := int(types.PGPTypeErrorRecipientNotFound)
		return &types.EncryptionIconStatus{
			IconColor:   types.IconColorError,
			Text:        types.StatusTextInvalidEmail,
			IsInvalid:   true,
			NonExisting: true,
		}, &code
	}
	return nil, nil
}

// GetSendPreferences resolves the full send decision for a recipient.
// Directory transport failures surface as the error; mapped directory
// errors come back inside SendPreferences.Error so the send pipeline can
// decide per recipient.
func (sps *SendPreferencesService) GetSendPreferences(ctx context.Context, user *types.User, email string, isMessagePassword bool) (types.SendPreferences, error) {
	keysResponse, kErr := sps.keyDirectoryService.FetchPublicKeys(ctx, email)
	if kErr != nil {
		var dirErr *KeyDirectoryError
		if errors.As(kErr, &dirErr) {
			return types.SendPreferences{Error: dirErr}, nil
		}
		return types.SendPreferences{}, kErr
	}
	return sps.resolveOnline(ctx, user, email, keysResponse, isMessagePassword), nil
}

// resolveOnline combines the directory response with the verified local
// contact record. Directory-reported capability wins; contact preferences
// only refine sign/scheme/mime.
func (sps *SendPreferencesService) resolveOnline(ctx context.Context, user *types.User, email string, keysResponse *types.KeysResponse, isMessagePassword bool) types.SendPreferences {
	var preContact *types.PreContact
	preContacts := sps.contactService.FetchAndVerifyContacts(ctx, user, []string{email})
	if len(preContacts) > 0 && preContacts[0].Email == email {
		preContact = preContacts[0]
	}
	return ResolveSendPreferences(preContact, keysResponse, global.Conf.MailTrust.DefaultSign, isMessagePassword)
}

// ResolveSendPreferences is the deterministic preference merge. Precedence:
//  1. recipient type and directory keys decide whether end-to-end
//     encryption is possible at all
//  2. a password-protected message to an external recipient packages as
//     encrypted-outside regardless of keys
//  3. pinned contact keys, when verified and not compromised, take
//     precedence over directory keys for key selection
//  4. contact preferences refine sign/scheme/mime but never downgrade a
//     first-party recipient
func ResolveSendPreferences(preContact *types.PreContact, keysResponse *types.KeysResponse, defaultSign bool, isMessagePassword bool) types.SendPreferences {
	pinnedKey := selectPinnedKey(preContact, keysResponse)
	mimeType := resolveMIMEType(preContact)

	if keysResponse.IsInternal() {
		preferences := types.SendPreferences{
			Encrypt:    true,
			Sign:       true,
			Scheme:     types.PGPSchemeInternal,
			MIMEType:   mimeType,
			HasApiKeys: true,
		}
		if pinnedKey != nil {
			preferences.PublicKey = pinnedKey
			preferences.IsPublicKeyPinned = true
		} else if apiKey := selectAPIKey(keysResponse); apiKey != nil {
			preferences.PublicKey = apiKey
		} else {
			preferences.HasApiKeys = false
			preferences.Error = types.ErrNoValidKeys
		}
		return preferences
	}

	// external recipient
	hasApiKeys := keysResponse != nil && len(keysResponse.ValidKeys()) > 0

	if isMessagePassword {
		return types.SendPreferences{
			Encrypt:    true,
			Sign:       false,
			Scheme:     types.PGPSchemeEncryptedOutside,
			MIMEType:   mimeType,
			HasApiKeys: hasApiKeys,
		}
	}

	encryptionKey := pinnedKey
	isPinned := pinnedKey != nil
	if encryptionKey == nil {
		encryptionKey = selectAPIKey(keysResponse)
	}
	contactWantsEncryption := preContact != nil && preContact.Encrypt

	if encryptionKey != nil && (contactWantsEncryption || (hasApiKeys && !isPinned)) {
		return types.SendPreferences{
			Encrypt:           true,
			Sign:              true, // encrypted external mail is always signed
			Scheme:            resolveExternalScheme(preContact),
			MIMEType:          externalMIMEType(preContact, mimeType),
			PublicKey:         encryptionKey,
			IsPublicKeyPinned: isPinned,
			HasApiKeys:        hasApiKeys,
		}
	}

	sign := defaultSign
	if preContact != nil {
		switch preContact.Sign {
		case types.SignStatusSign:
			sign = true
		case types.SignStatusDoNotSign:
			sign = false
		}
	}
	scheme := types.PGPSchemeCleartext
	if sign {
		scheme = resolveExternalScheme(preContact)
	}
	return types.SendPreferences{
		Encrypt:    false,
		Sign:       sign,
		Scheme:     scheme,
		MIMEType:   externalMIMEType(preContact, mimeType),
		HasApiKeys: hasApiKeys,
	}
}

// selectPinnedKey picks the first verified pinned key that survives the
// compromise filter, parsed and ready for packaging.
func selectPinnedKey(preContact *types.PreContact, keysResponse *types.KeysResponse) *crypto.Key {
	if preContact == nil || len(preContact.PublicKeys) == 0 {
		return nil
	}
	armored := filterPinnedKeys(preContact.Email, preContact.PublicKeys, compromisedFingerprints(keysResponse))
	for _, a := range armored {
		key, kErr := crypto.NewKeyFromArmored(a)
		if kErr != nil {
			continue
		}
		return key
	}
	return nil
}

// selectAPIKey picks the first directory key still valid for encryption.
func selectAPIKey(keysResponse *types.KeysResponse) *crypto.Key {
	for _, entry := range keysResponse.ValidKeys() {
		key, kErr := crypto.NewKeyFromArmored(entry.PublicKey)
		if kErr != nil {
			level.Warn(global.Logger).Log("msg", "unparseable directory key", "err", kErr)
			continue
		}
		if key.IsExpired() {
			continue
		}
		return key
	}
	return nil
}

func resolveExternalScheme(preContact *types.PreContact) types.PGPScheme {
	if preContact != nil && strings.EqualFold(preContact.Scheme, schemePGPInline) {
		return types.PGPSchemePGPInline
	}
	return types.PGPSchemePGPMIME
}

func resolveMIMEType(preContact *types.PreContact) string {
	if preContact != nil && preContact.MIMEType != "" {
		return preContact.MIMEType
	}
	return global.Conf.MailTrust.DefaultMIMEType
}

// externalMIMEType forces text/plain for inline PGP, which cannot carry
// multipart bodies.
func externalMIMEType(preContact *types.PreContact, fallback string) string {
	if preContact != nil && strings.EqualFold(preContact.Scheme, schemePGPInline) {
		return "text/plain"
	}
	return fallback
}

func mapDirectoryError(dirErr *KeyDirectoryError) (*types.EncryptionIconStatus, *int) {
	code := dirErr.Code
	switch types.PGPTypeErrorCode(dirErr.Code) {
	case types.PGPTypeErrorEmailFailedValidation:
		return &types.EncryptionIconStatus{
			IconColor: types.IconColorError,
			Text:      types.StatusTextInvalidEmail,
			IsInvalid: true,
		}, &code
	case types.PGPTypeErrorRecipientNotFound:
		return &types.EncryptionIconStatus{
			IconColor:   types.IconColorError,
			Text:        types.StatusTextRecipientNotFound,
			IsInvalid:   true,
			NonExisting: true,
		}, &code
	default:
		return &types.EncryptionIconStatus{
			IconColor: types.IconColorError,
			Text:      types.StatusTextResolutionFailed,
			IsInvalid: true,
		}, &code
	}
}

// mapPreferencesToIcon turns a resolved decision into the icon/text pair.
func mapPreferencesToIcon(preferences types.SendPreferences, isInternal bool) *types.EncryptionIconStatus {
	if isInternal {
		text := types.StatusTextE2EEncrypted
		if preferences.IsPublicKeyPinned {
			text = types.StatusTextE2EEncryptedVerified
		}
		return &types.EncryptionIconStatus{
			IconColor:   types.IconColorBlue,
			Text:        text,
			IsPGPPinned: preferences.IsPublicKeyPinned,
		}
	}
	if preferences.Scheme == types.PGPSchemeEncryptedOutside {
		return &types.EncryptionIconStatus{
			IconColor: types.IconColorBlue,
			Text:      types.StatusTextE2EEncrypted,
		}
	}
	if preferences.Encrypt {
		text := types.StatusTextPGPEncrypted
		if preferences.IsPublicKeyPinned {
			text = types.StatusTextPGPEncryptedVerified
		}
		return &types.EncryptionIconStatus{
			IconColor:   types.IconColorGreen,
			Text:        text,
			IsPGPPinned: preferences.IsPublicKeyPinned,
		}
	}
	if preferences.Sign {
		return &types.EncryptionIconStatus{
			IconColor: types.IconColorGreen,
			Text:      types.StatusTextPGPSigned,
		}
	}
	return &types.EncryptionIconStatus{
		IconColor: types.IconColorBlack,
		Text:      types.StatusTextNoEncryption,
	}
}
