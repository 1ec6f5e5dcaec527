// Package vault seals credentials at rest with a process-level AES-GCM
// master key and pins a specific secret version for the lifetime of one
// workflow/orchestrator run, per the Store's versioned (scope, key_name)
// rows.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// SecretStore is the subset of store.Store the vault needs.
type SecretStore interface {
	PutSecret(ctx context.Context, scope, keyName string, ciphertext []byte) (models.Secret, error)
	GetSecret(ctx context.Context, scope, keyName string, version int) (models.Secret, error)
	ListSecrets(ctx context.Context, scope string) ([]models.Secret, error)
}

// Vault seals/unseals secrets with AES-256-GCM using a process-level master
// key supplied at construction (never persisted by the vault itself).
type Vault struct {
	store SecretStore
	gcm   cipher.AEAD
}

// New builds a Vault from a 32-byte master key.
func New(store SecretStore, masterKey []byte) (*Vault, error) {
	if len(masterKey) != 32 {
		return nil, errors.New("vault: master key must be 32 bytes")
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "vault.New", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "vault.New", err)
	}
	return &Vault{store: store, gcm: gcm}, nil
}

// Put encrypts plaintext and writes a new version under (scope, keyName).
func (v *Vault) Put(ctx context.Context, scope, keyName, plaintext string) (int, error) {
	sealed, err := v.seal(plaintext)
	if err != nil {
		return 0, err
	}
	sec, err := v.store.PutSecret(ctx, scope, keyName, sealed)
	if err != nil {
		return 0, err
	}
	return sec.Version, nil
}

// Get decrypts and returns the plaintext for (scope, keyName). version == 0
// means "latest"; a run that needs to pin a version across its lifetime
// should pass the version it first observed.
func (v *Vault) Get(ctx context.Context, scope, keyName string, version int) (string, error) {
	sec, err := v.store.GetSecret(ctx, scope, keyName, version)
	if err != nil {
		return "", err
	}
	return v.open(sec.Ciphertext)
}

// List enumerates the key names (and latest versions) within a scope,
// never returning plaintext or ciphertext.
func (v *Vault) List(ctx context.Context, scope string) ([]models.Secret, error) {
	return v.store.ListSecrets(ctx, scope)
}

// Rotate writes a new version of an existing secret, returning the new
// version number. Prior readers that pinned the old version keep working.
func (v *Vault) Rotate(ctx context.Context, scope, keyName, newPlaintext string) (int, error) {
	return v.Put(ctx, scope, keyName, newPlaintext)
}

func (v *Vault) seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errkind.New(errkind.Internal, "vault.seal", err)
	}
	return v.gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (v *Vault) open(ciphertext []byte) (string, error) {
	nonceSize := v.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errkind.Newf(errkind.Internal, "vault.open", "ciphertext too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := v.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errkind.New(errkind.Internal, "vault.open", err)
	}
	return string(plaintext), nil
}

// GenerateMasterKey produces a fresh random 32-byte AES-256 key, hex-encoded
// for storage in an env var or secrets manager.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// DecodeMasterKey parses a hex-encoded 32-byte key as produced by
// GenerateMasterKey.
func DecodeMasterKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errkind.New(errkind.BadRequest, "vault.DecodeMasterKey", err)
	}
	if len(key) != 32 {
		return nil, errors.New("vault: decoded key must be 32 bytes")
	}
	return key, nil
}
