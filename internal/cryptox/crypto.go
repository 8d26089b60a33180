// Package cryptox seals documents under a password: argon2id derives an
// AES-256 key and AES-GCM encrypts the JSON payload. The sealed envelope
// carries its own KDF parameters and salt so it can be opened with nothing
// but the password.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/thunder/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	magic       = "TVLT"
	version     = 1
	saltSize    = 16
	nonceSize   = 12
	keySize     = 32
	headerSize  = len(magic) + 1 + 4 + 4 + 1 + saltSize + nonceSize
	maxMemoryKB = 4 * 1024 * 1024
)

var (
	// ErrMalformedEnvelope means the bytes are not a sealed envelope at all.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrDecrypt means authentication failed: wrong password or tampered data.
	ErrDecrypt = errors.New("decryption failed")
)

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams returns the parameters used for new vaults.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

// DeriveKey stretches password with argon2id into a 32-byte AES key.
func DeriveKey(password, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, keySize)
}

// Sealer holds a derived key together with the salt and parameters it came
// from, so a document can be re-sealed many times without rerunning the KDF.
// Each Seal call still uses a fresh nonce.
type Sealer struct {
	key    []byte
	salt   []byte
	params KDFParams
}

// NewSealer derives a key from password under a fresh random salt.
func NewSealer(password []byte, p KDFParams) *Sealer {
	salt := common.GenerateRandByteArray(saltSize)
	return &Sealer{key: DeriveKey(password, salt, p), salt: salt, params: p}
}

// Seal serializes v to JSON and encrypts it.
//
// Layout of the returned envelope:
//
//	magic "TVLT" | version | time (u32 BE) | memory KiB (u32 BE) | threads |
//	salt (16) | nonce (12) | AES-GCM ciphertext
//
// The header is authenticated as GCM additional data, so altering any byte
// of it makes Open fail with ErrDecrypt.
//
// Example:
//
//	s := cryptox.NewSealer([]byte("correct horse"), cryptox.DefaultKDFParams())
//	defer s.Wipe()
//	blob, err := s.Seal(doc)
//	if err != nil {
//	    return err
//	}
//	var out Document
//	_, err = cryptox.Open(blob, []byte("correct horse"), &out)
func (s *Sealer) Seal(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	nonce := common.GenerateRandByteArray(nonceSize)
	header := encodeHeader(s.params, s.salt, nonce)

	aesgcm, err := newGCM(s.key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Seal(header, nonce, plaintext, header), nil
}

// Wipe zeroes the key. The Sealer must not be used afterwards.
func (s *Sealer) Wipe() {
	common.WipeByteArray(s.key)
}

// Seal is a one-shot helper: fresh salt, derive, seal.
func Seal(v any, password []byte, p KDFParams) ([]byte, error) {
	s := NewSealer(password, p)
	defer s.Wipe()
	return s.Seal(v)
}

// Open reverses Seal and unmarshals the plaintext JSON into v. On success it
// returns a Sealer bound to the envelope's salt and parameters, ready to
// re-seal the same document.
//
// It returns ErrMalformedEnvelope when the header cannot be parsed and
// ErrDecrypt when the password is wrong or the data was modified. Callers
// facing untrusted users should collapse both into a single error.
func Open(blob, password []byte, v any) (*Sealer, error) {
	p, salt, nonce, err := decodeHeader(blob)
	if err != nil {
		return nil, err
	}
	header := blob[:headerSize]

	key := DeriveKey(password, salt, p)

	aesgcm, err := newGCM(key)
	if err != nil {
		common.WipeByteArray(key)
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, blob[headerSize:], header)
	if err != nil {
		common.WipeByteArray(key)
		return nil, ErrDecrypt
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		common.WipeByteArray(key)
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &Sealer{key: key, salt: append([]byte(nil), salt...), params: p}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encodeHeader(p KDFParams, salt, nonce []byte) []byte {
	h := make([]byte, 0, headerSize)
	h = append(h, magic...)
	h = append(h, version)
	h = binary.BigEndian.AppendUint32(h, p.Time)
	h = binary.BigEndian.AppendUint32(h, p.Memory)
	h = append(h, p.Threads)
	h = append(h, salt...)
	h = append(h, nonce...)
	return h
}

func decodeHeader(blob []byte) (p KDFParams, salt, nonce []byte, err error) {
	if len(blob) < headerSize || !bytes.Equal(blob[:len(magic)], []byte(magic)) {
		return p, nil, nil, ErrMalformedEnvelope
	}
	off := len(magic)
	if blob[off] != version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedEnvelope, blob[off])
	}
	off++

	p.Time = binary.BigEndian.Uint32(blob[off:])
	off += 4
	p.Memory = binary.BigEndian.Uint32(blob[off:])
	off += 4
	p.Threads = blob[off]
	off++

	// Bound attacker-controlled cost parameters before running the KDF.
	if p.Time == 0 || p.Threads == 0 || p.Memory == 0 || p.Memory > maxMemoryKB || p.Time > 64 {
		return p, nil, nil, fmt.Errorf("%w: kdf parameters out of range", ErrMalformedEnvelope)
	}

	salt = blob[off : off+saltSize]
	off += saltSize
	nonce = blob[off : off+nonceSize]
	return p, salt, nonce, nil
}
