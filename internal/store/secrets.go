package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// PutSecret writes a new version of a secret under (scope, key_name). The
// caller (vault) is responsible for encrypting Ciphertext before this call;
// Store never sees plaintext.
func (s *Store) PutSecret(ctx context.Context, scope, keyName string, ciphertext []byte) (models.Secret, error) {
	if scope == "" || keyName == "" {
		return models.Secret{}, errkind.Newf(errkind.BadRequest, "store.PutSecret", "scope and key_name are required")
	}

	var nextVersion int
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM secrets WHERE scope = $1 AND key_name = $2
	`, scope, keyName)
	if err := row.Scan(&nextVersion); err != nil {
		return models.Secret{}, errkind.New(errkind.Internal, "store.PutSecret", err)
	}

	var created models.Secret
	insertRow := s.db.QueryRowContext(ctx, `
		INSERT INTO secrets (scope, key_name, ciphertext, version)
		VALUES ($1, $2, $3, $4)
		RETURNING scope, key_name, ciphertext, version, created_at
	`, scope, keyName, ciphertext, nextVersion)
	if err := insertRow.Scan(&created.Scope, &created.KeyName, &created.Ciphertext, &created.Version, &created.CreatedAt); err != nil {
		return models.Secret{}, errkind.New(errkind.ConstraintViolation, "store.PutSecret", err)
	}
	return created, nil
}

// GetSecret fetches the latest version of a secret, or a pinned version when
// version > 0 (runs pin the version that was current when they started).
func (s *Store) GetSecret(ctx context.Context, scope, keyName string, version int) (models.Secret, error) {
	var row *sql.Row
	if version > 0 {
		row = s.db.QueryRowContext(ctx, `
			SELECT scope, key_name, ciphertext, version, created_at
			FROM secrets WHERE scope = $1 AND key_name = $2 AND version = $3
		`, scope, keyName, version)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT scope, key_name, ciphertext, version, created_at
			FROM secrets WHERE scope = $1 AND key_name = $2
			ORDER BY version DESC LIMIT 1
		`, scope, keyName)
	}

	var sec models.Secret
	if err := row.Scan(&sec.Scope, &sec.KeyName, &sec.Ciphertext, &sec.Version, &sec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Secret{}, errkind.Newf(errkind.MissingCredential, "store.GetSecret", "secret %s/%s not found", scope, keyName)
		}
		return models.Secret{}, errkind.New(errkind.Internal, "store.GetSecret", err)
	}
	return sec, nil
}

// ListSecrets lists the latest version of every secret within a scope,
// without ever returning ciphertext — callers use this for admin listing UIs.
func (s *Store) ListSecrets(ctx context.Context, scope string) ([]models.Secret, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (key_name) scope, key_name, version, created_at
		FROM secrets WHERE scope = $1
		ORDER BY key_name, version DESC
	`, scope)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "store.ListSecrets", err)
	}
	defer rows.Close()

	var out []models.Secret
	for rows.Next() {
		var sec models.Secret
		if err := rows.Scan(&sec.Scope, &sec.KeyName, &sec.Version, &sec.CreatedAt); err != nil {
			return nil, errkind.New(errkind.Internal, "store.ListSecrets", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}
