package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

type fakeStore struct {
	rows map[string][]models.Secret // key: scope\x00keyName, ordered oldest->newest
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]models.Secret)}
}

func (f *fakeStore) PutSecret(ctx context.Context, scope, keyName string, ciphertext []byte) (models.Secret, error) {
	k := pinKey(scope, keyName)
	version := len(f.rows[k]) + 1
	sec := models.Secret{Scope: scope, KeyName: keyName, Ciphertext: ciphertext, Version: version, CreatedAt: time.Unix(0, 0)}
	f.rows[k] = append(f.rows[k], sec)
	return sec, nil
}

func (f *fakeStore) GetSecret(ctx context.Context, scope, keyName string, version int) (models.Secret, error) {
	k := pinKey(scope, keyName)
	rows := f.rows[k]
	if len(rows) == 0 {
		return models.Secret{}, errkind.Newf(errkind.MissingCredential, "fakeStore.GetSecret", "no such secret")
	}
	if version <= 0 {
		return rows[len(rows)-1], nil
	}
	for _, r := range rows {
		if r.Version == version {
			return r, nil
		}
	}
	return models.Secret{}, errkind.Newf(errkind.MissingCredential, "fakeStore.GetSecret", "no such version")
}

func (f *fakeStore) ListSecrets(ctx context.Context, scope string) ([]models.Secret, error) {
	var out []models.Secret
	for _, rows := range f.rows {
		if len(rows) == 0 {
			continue
		}
		latest := rows[len(rows)-1]
		if latest.Scope == scope {
			out = append(out, models.Secret{Scope: latest.Scope, KeyName: latest.KeyName, Version: latest.Version, CreatedAt: latest.CreatedAt})
		}
	}
	return out, nil
}

func testKey(t *testing.T) []byte {
	t.Helper()
	return make([]byte, 32)
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newFakeStore()
	v, err := New(store, testKey(t))
	require.NoError(t, err)

	version, err := v.Put(context.Background(), "agent-1", "API_KEY", "sk-secret-value")
	require.NoError(t, err)
	require.Equal(t, 1, version)

	plaintext, err := v.Get(context.Background(), "agent-1", "API_KEY", 0)
	require.NoError(t, err)
	require.Equal(t, "sk-secret-value", plaintext)
}

func TestListNeverReturnsPlaintextOrCiphertext(t *testing.T) {
	store := newFakeStore()
	v, err := New(store, testKey(t))
	require.NoError(t, err)

	_, err = v.Put(context.Background(), "agent-1", "API_KEY", "sk-secret-value")
	require.NoError(t, err)

	secrets, err := v.List(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, secrets, 1)
	require.Nil(t, secrets[0].Ciphertext)
}

func TestRotateWritesNewVersionOldVersionStillReadable(t *testing.T) {
	store := newFakeStore()
	v, err := New(store, testKey(t))
	require.NoError(t, err)

	v1, err := v.Put(context.Background(), "agent-1", "API_KEY", "old-value")
	require.NoError(t, err)

	v2, err := v.Rotate(context.Background(), "agent-1", "API_KEY", "new-value")
	require.NoError(t, err)
	require.Greater(t, v2, v1)

	latest, err := v.Get(context.Background(), "agent-1", "API_KEY", 0)
	require.NoError(t, err)
	require.Equal(t, "new-value", latest)

	pinned, err := v.Get(context.Background(), "agent-1", "API_KEY", v1)
	require.NoError(t, err)
	require.Equal(t, "old-value", pinned)
}

func TestNewRejectsWrongKeySize(t *testing.T) {
	_, err := New(newFakeStore(), []byte("too-short"))
	require.Error(t, err)
}

func TestGenerateAndDecodeMasterKeyRoundTrip(t *testing.T) {
	hexKey, err := GenerateMasterKey()
	require.NoError(t, err)

	key, err := DecodeMasterKey(hexKey)
	require.NoError(t, err)
	require.Len(t, key, 32)

	store := newFakeStore()
	v, err := New(store, key)
	require.NoError(t, err)
	_, err = v.Put(context.Background(), "scope", "k", "plaintext")
	require.NoError(t, err)
}

func TestPinnedReaderPinsVersionAcrossRotation(t *testing.T) {
	store := newFakeStore()
	v, err := New(store, testKey(t))
	require.NoError(t, err)

	_, err = v.Put(context.Background(), "agent-1", "API_KEY", "v1-value")
	require.NoError(t, err)

	reader := NewPinnedReader(v)
	first, err := reader.Get(context.Background(), "agent-1", "API_KEY")
	require.NoError(t, err)
	require.Equal(t, "v1-value", first)

	_, err = v.Rotate(context.Background(), "agent-1", "API_KEY", "v2-value")
	require.NoError(t, err)

	second, err := reader.Get(context.Background(), "agent-1", "API_KEY")
	require.NoError(t, err)
	require.Equal(t, "v1-value", second, "pinned reader must keep resolving the version it first observed")

	fresh, err := v.Get(context.Background(), "agent-1", "API_KEY", 0)
	require.NoError(t, err)
	require.Equal(t, "v2-value", fresh)
}

func TestGetMissingSecretReturnsMissingCredentialKind(t *testing.T) {
	store := newFakeStore()
	v, err := New(store, testKey(t))
	require.NoError(t, err)

	_, err = v.Get(context.Background(), "agent-1", "NOPE", 0)
	require.Error(t, err)
	require.Equal(t, errkind.MissingCredential, errkind.Of(err))
}
