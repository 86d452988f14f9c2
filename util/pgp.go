package util

import (
	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/go-kit/log/level"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/types"
)

// ParseArmoredKey parses an armored key blob into a key object.
func ParseArmoredKey(armored string) (*crypto.Key, error) {
	key, err := crypto.NewKeyFromArmored(armored)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// FingerprintOfArmored returns the fingerprint of an armored key.
func FingerprintOfArmored(armored string) (string, error) {
	key, err := crypto.NewKeyFromArmored(armored)
	if err != nil {
		return "", err
	}
	return key.GetFingerprint(), nil
}

// BuildKeyRing assembles a key ring from armored keys. Unparseable keys are
// logged and skipped; an empty ring is an error since nothing could verify.
func BuildKeyRing(armoredKeys []string) (*crypto.KeyRing, error) {
	ring, err := crypto.NewKeyRing(nil)
	if err != nil {
		return nil, err
	}
	for _, armored := range armoredKeys {
		key, kErr := crypto.NewKeyFromArmored(armored)
		if kErr != nil {
			level.Warn(global.Logger).Log("msg", "skipping unparseable key", "err", kErr)
			continue
		}
		if aErr := ring.AddKey(key); aErr != nil {
			level.Warn(global.Logger).Log("msg", "skipping key, cannot add to ring", "err", aErr)
		}
	}
	if ring.CountEntities() == 0 {
		return nil, types.ErrBadRequest
	}
	return ring, nil
}

// VerifyDetachedSignature checks an armored detached signature over data
// against a set of armored verifier keys. Any single key verifying is a
// success. Reference time is the current wall clock.
func VerifyDetachedSignature(verifierKeys []string, data []byte, armoredSignature string) bool {
	ring, rErr := BuildKeyRing(verifierKeys)
	if rErr != nil {
		return false
	}
	signature, sErr := crypto.NewPGPSignatureFromArmored(armoredSignature)
	if sErr != nil {
		return false
	}
	message := crypto.NewPlainMessage(data)
	return ring.VerifyDetached(message, signature, crypto.GetUnixTime()) == nil
}

// SignDetached produces an armored detached signature over data with an
// armored (unlocked) private key.
func SignDetached(armoredPrivateKey string, passphrase []byte, data []byte) (string, error) {
	key, kErr := crypto.NewKeyFromArmored(armoredPrivateKey)
	if kErr != nil {
		return "", kErr
	}
	locked, lErr := key.IsLocked()
	if lErr == nil && locked {
		key, kErr = key.Unlock(passphrase)
		if kErr != nil {
			return "", kErr
		}
	}
	ring, rErr := crypto.NewKeyRing(key)
	if rErr != nil {
		return "", rErr
	}
	signature, sErr := ring.SignDetached(crypto.NewPlainMessage(data))
	if sErr != nil {
		return "", sErr
	}
	return signature.GetArmored()
}

// RearmorRawKey turns a raw (binary) public key back into its armored form
// and reports its fingerprint.
func RearmorRawKey(raw []byte) (armored string, fingerprint string, err error) {
	key, kErr := crypto.NewKey(raw)
	if kErr != nil {
		return "", "", kErr
	}
	armored, aErr := key.GetArmoredPublicKey()
	if aErr != nil {
		return "", "", aErr
	}
	return armored, key.GetFingerprint(), nil
}
