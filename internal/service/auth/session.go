package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/repository"
	pkgauth "github.com/jwalitptl/checkin-kiosk/pkg/auth"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
)

// Sessions issues and resolves the signed session cookie shared by the
// doctor's workstation and the kiosk.
type Sessions struct {
	repo   repository.SessionRepository
	signer *pkgauth.SessionSigner
	now    func() time.Time
}

func NewSessions(repo repository.SessionRepository, signer *pkgauth.SessionSigner) *Sessions {
	return &Sessions{repo: repo, signer: signer, now: time.Now}
}

// TTL is how long a session and its cookie live.
func (s *Sessions) TTL() time.Duration {
	return s.signer.TTL()
}

// Start creates a session for the doctor and returns the cookie value.
func (s *Sessions) Start(ctx context.Context, doctor int64) (string, error) {
	session := &model.Session{
		ID:        uuid.NewString(),
		DoctorID:  doctor,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, session, s.signer.TTL()); err != nil {
		return "", apperrors.Internal(err)
	}

	token, err := s.signer.Sign(session.ID)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return token, nil
}

// Resolve returns the session behind a cookie value. A bad signature, an
// expired token or a missing session are all Unauthenticated.
func (s *Sessions) Resolve(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	id, err := s.signer.Verify(token)
	if err != nil {
		return nil, apperrors.ErrUnauthenticated
	}

	session, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return session, nil
}

// End drops the session behind a cookie value. Unknown or invalid cookies are
// ignored.
func (s *Sessions) End(ctx context.Context, token string) error {
	id, err := s.signer.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}
