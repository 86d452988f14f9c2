package util

import (
	"encoding/base64"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/mailtrust/go-mailtrust-server/global"
	"golang.org/x/crypto/scrypt"
)

var (
	scryptN   = 32768 // N = CPU/memory cost parameter
	scryptR   = 8     // r and p must satisfy r * p < 2^30
	scryptP   = 1
	scryptLen = 32 // 32 bytes long
)

// ScryptEmail derives a stable opaque identifier from an email address so
// that plain addresses never appear as cache or document keys.
func ScryptEmail(email string) (string, error) {
	salt := []byte(global.Conf.MailTrust.EmailSaltHex)
	if len(salt) == 0 {
		salt = []byte(email)
	}
	dk, err := scrypt.Key([]byte(email), salt, scryptN, scryptR, scryptP, scryptLen)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(dk), nil
}

// CacheKey builds a short namespaced redis key from arbitrary parts.
func CacheKey(namespace string, parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\x00")
	}
	return fmt.Sprintf("%s:%x", namespace, h.Sum64())
}
