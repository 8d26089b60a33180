package guard

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/thunder/internal/common"
)

const (
	// Period is the lifetime of a login code.
	Period = 30

	// CodeLength is the number of symbols in a login code.
	CodeLength = 5

	// MaxTagLength is the number of tag bytes mixed into a confirmation key;
	// longer tags are truncated.
	MaxTagLength = 32

	// Steam's code alphabet. Ambiguous glyphs are left out on purpose.
	alphabet = "23456789BCDFGHJKMNPQRTVWXY"
)

// Confirmation tags understood by Steam.
const (
	TagConf   = "conf"
	TagAllow  = "allow"
	TagCancel = "cancel"
)

// DecodeSecret converts a stored secret into raw key bytes.
func DecodeSecret(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, common.ErrInvalidSecretEncoding
	}

	enc := base64.StdEncoding
	if !strings.HasSuffix(s, "=") && len(s)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	b, err := enc.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidSecretEncoding, err)
	}
	return b, nil
}

// LoginCode returns the Steam Guard login code valid at unixTime.
func LoginCode(sharedSecret string, unixTime int64) (string, error) {
	key, err := DecodeSecret(sharedSecret)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(unixTime/Period))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	digest := mac.Sum(nil)

	offset := digest[19] & 0x0f
	full := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff

	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = alphabet[full%uint32(len(alphabet))]
		full /= uint32(len(alphabet))
	}
	return string(code), nil
}

// ConfirmationKey returns the base64 HMAC-SHA1 of the big-endian unixTime
// followed by tag, keyed by the identity secret.
func ConfirmationKey(identitySecret string, unixTime int64, tag string) (string, error) {
	key, err := DecodeSecret(identitySecret)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	t := []byte(tag)
	if len(t) > MaxTagLength {
		t = t[:MaxTagLength]
	}

	msg := make([]byte, 8, 8+len(t))
	binary.BigEndian.PutUint64(msg, uint64(unixTime))
	msg = append(msg, t...)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Remaining reports how long the code for now stays valid.
func Remaining(now time.Time) time.Duration {
	elapsed := now.Unix() % Period
	return time.Duration(Period-elapsed) * time.Second
}
