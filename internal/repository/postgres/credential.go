package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/repository"
	"github.com/jwalitptl/checkin-kiosk/pkg/security"
)

type credentialRepository struct {
	BaseRepository
	enc security.Encryptor
}

// NewCredentialRepository stores token bundles encrypted with enc; callers
// always see plaintext.
func NewCredentialRepository(base BaseRepository, enc security.Encryptor) repository.CredentialRepository {
	return &credentialRepository{BaseRepository: base, enc: enc}
}

func (r *credentialRepository) Save(ctx context.Context, doctorID int64, token []byte, expiresAt *time.Time) (err error) {
	start := time.Now()
	defer func() { r.observe("credential.save", start, err) }()

	sealed, err := r.enc.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	query := `
		INSERT INTO doctor_credentials (doctor_id, token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (doctor_id) DO UPDATE
		SET token = $2, expires_at = $3, updated_at = NOW()
	`
	if _, err = r.GetDB().ExecContext(ctx, query, doctorID, sealed, expiresAt); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (r *credentialRepository) Get(ctx context.Context, doctorID int64) (_ *model.StoredCredential, err error) {
	start := time.Now()
	defer func() { r.observe("credential.get", start, err) }()

	query := `
		SELECT doctor_id, token, expires_at, created_at, updated_at
		FROM doctor_credentials
		WHERE doctor_id = $1
	`

	var cred model.StoredCredential
	if err = r.GetDB().GetContext(ctx, &cred, query, doctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred.Token, err = r.enc.Decrypt(cred.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return &cred, nil
}

func (r *credentialRepository) Delete(ctx context.Context, doctorID int64) (err error) {
	start := time.Now()
	defer func() { r.observe("credential.delete", start, err) }()

	if _, err = r.GetDB().ExecContext(ctx, `DELETE FROM doctor_credentials WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
