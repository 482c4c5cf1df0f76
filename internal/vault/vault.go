// internal/vault/vault.go
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names inside the vault directory.
const (
	TokenFile       = "token.txt"
	KeyFile         = "key.txt"
	IVFile          = "iv.txt"
	CredentialsFile = "credentials.txt"
)

// Credentials is the plaintext secret material derived once at boot
// and held for the process lifetime.
type Credentials struct {
	Token    string
	SSID     string
	Password string
}

// Unlock reads the vault directory and decrypts the credential blob.
//
// Any missing or corrupt artifact is an error; the caller must treat it
// as fatal, since no network activity can start without credentials.
// Unlock runs exactly once, before networking starts.
func Unlock(dir string) (Credentials, Material, error) {
	var creds Credentials
	var mat Material

	token, err := readArtifact(dir, TokenFile)
	if err != nil {
		return creds, mat, err
	}
	creds.Token = strings.TrimSpace(token)

	mat, err = LoadMaterial(dir)
	if err != nil {
		return creds, mat, err
	}

	blob, err := readArtifact(dir, CredentialsFile)
	if err != nil {
		return creds, mat, err
	}

	plain, err := NewCipher(mat).Decrypt(blob)
	if err != nil {
		return creds, mat, fmt.Errorf("vault: credential blob: %w", err)
	}

	// Decrypted blob is "ssid:password", split at the first separator.
	sep := strings.Index(plain, ":")
	if sep < 0 {
		return creds, mat, fmt.Errorf("vault: credential blob has no separator")
	}
	creds.SSID = plain[:sep]
	creds.Password = plain[sep+1:]

	if creds.SSID == "" || creds.Password == "" {
		return creds, mat, fmt.Errorf("vault: credential blob incomplete")
	}

	return creds, mat, nil
}

// LoadMaterial reads just the key and IV artifacts. Used by Unlock and
// by the vault CLI tooling, which works without a credential blob.
func LoadMaterial(dir string) (Material, error) {
	var mat Material

	keyRaw, err := readArtifact(dir, KeyFile)
	if err != nil {
		return mat, err
	}
	mat.Key, err = ParseHexBytes(keyRaw)
	if err != nil {
		return mat, fmt.Errorf("vault: %s: %w", KeyFile, err)
	}

	ivRaw, err := readArtifact(dir, IVFile)
	if err != nil {
		return mat, err
	}
	mat.IV, err = ParseHexBytes(ivRaw)
	if err != nil {
		return mat, fmt.Errorf("vault: %s: %w", IVFile, err)
	}

	return mat, nil
}

func readArtifact(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("vault: read %s: %w", name, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("vault: %s is empty", name)
	}
	return string(b), nil
}
