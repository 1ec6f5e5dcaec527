package vault

import (
	"context"
	"sync"
)

// PinnedReader fixes the secret version it first resolves for each
// (scope, key_name) pair, so a single orchestrator or workflow run keeps
// using the credential it started with even if another caller rotates it
// mid-run.
type PinnedReader struct {
	vault *Vault
	mu    sync.Mutex
	pins  map[string]int
}

// NewPinnedReader wraps v for use within the lifetime of one run.
func NewPinnedReader(v *Vault) *PinnedReader {
	return &PinnedReader{vault: v, pins: make(map[string]int)}
}

// Get resolves the latest version on first call for a given (scope, keyName)
// and the pinned version on every subsequent call within this reader's life.
func (p *PinnedReader) Get(ctx context.Context, scope, keyName string) (string, error) {
	p.mu.Lock()
	version, pinned := p.pins[pinKey(scope, keyName)]
	p.mu.Unlock()

	if pinned {
		return p.vault.Get(ctx, scope, keyName, version)
	}

	sec, err := p.vault.store.GetSecret(ctx, scope, keyName, 0)
	if err != nil {
		return "", err
	}
	plaintext, err := p.vault.open(sec.Ciphertext)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.pins[pinKey(scope, keyName)] = sec.Version
	p.mu.Unlock()

	return plaintext, nil
}

func pinKey(scope, keyName string) string {
	return scope + "\x00" + keyName
}
