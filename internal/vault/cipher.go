// internal/vault/cipher.go
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BlockSize is the AES block size; key and IV are both one block.
const BlockSize = 16

// Material is the symmetric cipher state loaded once at boot.
type Material struct {
	Key [BlockSize]byte
	IV  [BlockSize]byte
}

// Cipher performs AES-128-CBC over base64-encoded ciphertext.
// Every call works on its own copy of the IV; the stored material is
// never mutated.
type Cipher struct {
	mat Material
}

// NewCipher creates a Cipher from loaded material.
func NewCipher(mat Material) *Cipher {
	return &Cipher{mat: mat}
}

// Decrypt decodes and decrypts a base64 CBC blob. The logical string
// ends at the first byte below ASCII 32; block padding past that point
// is discarded.
func (c *Cipher) Decrypt(b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return "", fmt.Errorf("vault: ciphertext not base64: %w", err)
	}
	if len(raw) == 0 || len(raw)%BlockSize != 0 {
		return "", fmt.Errorf("vault: ciphertext length %d not a block multiple", len(raw))
	}

	block, err := aes.NewCipher(c.mat.Key[:])
	if err != nil {
		return "", err
	}

	// CBC decryption consumes the IV; work on a copy.
	iv := c.mat.IV
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(plain, raw)

	return terminate(plain), nil
}

// Encrypt zero-pads the plaintext to a block multiple, encrypts it and
// returns the base64 blob. Used by the vault CLI tooling.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("vault: empty plaintext")
	}

	block, err := aes.NewCipher(c.mat.Key[:])
	if err != nil {
		return "", err
	}

	padded := make([]byte, (len(plain)+BlockSize-1)/BlockSize*BlockSize)
	copy(padded, plain)

	iv := c.mat.IV
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// terminate cuts the buffer at the first byte below the printable-ASCII
// range, the logical string terminator left by block padding.
func terminate(b []byte) string {
	for i, c := range b {
		if c < 32 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ParseHexBytes parses a comma-separated list of hex byte values
// ("0x2b,0x7e,..." or bare "2b,7e,...") into one cipher block.
func ParseHexBytes(s string) ([BlockSize]byte, error) {
	var out [BlockSize]byte

	parts := strings.Split(strings.TrimSpace(s), ",")
	i := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(strings.TrimPrefix(p, "0x"), "0X")
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("vault: bad hex byte %q: %w", p, err)
		}
		if i >= BlockSize {
			return out, fmt.Errorf("vault: more than %d bytes in hex list", BlockSize)
		}
		out[i] = byte(v)
		i++
	}
	if i != BlockSize {
		return out, fmt.Errorf("vault: hex list has %d bytes, want %d", i, BlockSize)
	}
	return out, nil
}
