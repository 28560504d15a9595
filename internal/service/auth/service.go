package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/repository"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
	"github.com/jwalitptl/checkin-kiosk/pkg/metrics"
)

var ErrInvalidState = errors.New("unknown or expired authorization state")

const stateTTL = 10 * time.Minute

// Provider is the part of *oauth2.Config the service uses.
type Provider interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

type Service struct {
	provider  Provider
	connector emr.Connector
	creds     repository.CredentialRepository
	states    *cache.Cache
	log       *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(provider Provider, connector emr.Connector, creds repository.CredentialRepository, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		provider:  provider,
		connector: connector,
		creds:     creds,
		states:    cache.New(stateTTL, 2*stateTTL),
		log:       log,
		metrics:   m,
	}
}

// BeginAuthorization returns the provider URL the browser is sent to. The
// embedded state is accepted once by Complete within stateTTL.
func (s *Service) BeginAuthorization() string {
	state := uuid.NewString()
	s.states.SetDefault(state, struct{}{})
	return s.provider.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Complete finishes the authorization handshake: the code is exchanged, the
// account behind it is looked up and the token is stored for that doctor.
func (s *Service) Complete(ctx context.Context, state, code string) (int64, error) {
	if _, ok := s.states.Get(state); !ok || state == "" {
		return 0, apperrors.BadRequest("invalid authorization state", ErrInvalidState)
	}
	s.states.Delete(state)

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return 0, apperrors.Unauthorized(fmt.Errorf("failed to exchange authorization code: %w", err))
	}

	cred := NewCredential(oauth2.StaticTokenSource(tok))
	user, err := s.connector.Connect(cred).CurrentUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to identify doctor: %w", err)
	}

	if err := s.save(ctx, user.ID, tok); err != nil {
		return 0, err
	}

	logger.FromContext(ctx, s.log).Info("doctor authorized", "doctor_id", user.ID, "username", user.Username)
	return user.ID, nil
}

// Credential loads the doctor's stored token. Refreshed tokens are written
// back so the refresh token keeps working across sessions.
func (s *Service) Credential(ctx context.Context, doctor int64) (*Credential, error) {
	stored, err := s.creds.Get(ctx, doctor)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(stored.Token, &tok); err != nil {
		logger.FromContext(ctx, s.log).Error(err, "discarding unreadable credential", "doctor_id", doctor)
		return nil, apperrors.ErrUnauthenticated
	}

	persist := &persistingSource{
		base: oauth2.ReuseTokenSource(&tok, s.provider.TokenSource(ctx, &tok)),
		last: tok.AccessToken,
		// Without a refresh token an expired grant cannot come back.
		refreshable: tok.RefreshToken != "",
		onSave:      func(t *oauth2.Token) error { return s.save(ctx, doctor, t) },
		log:         s.log,
	}
	return NewCredential(persist), nil
}

// Verify checks the stored credential against the upstream. An upstream 401
// forgets the credential.
func (s *Service) Verify(ctx context.Context, doctor int64) error {
	cred, err := s.Credential(ctx, doctor)
	if err != nil {
		return err
	}
	_, err = s.connector.Connect(cred).CurrentUser(ctx)
	if apperrors.IsUnauthenticated(err) {
		if ferr := s.Forget(ctx, doctor); ferr != nil {
			return ferr
		}
	}
	return err
}

// Forget deletes the stored credential; the doctor has to authorize again.
func (s *Service) Forget(ctx context.Context, doctor int64) error {
	if err := s.creds.Delete(ctx, doctor); err != nil {
		return apperrors.Internal(err)
	}
	s.metrics.Invalidated()
	logger.FromContext(ctx, s.log).Warn("credential forgotten", "doctor_id", doctor)
	return nil
}

func (s *Service) save(ctx context.Context, doctor int64, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to marshal token: %w", err))
	}
	var expires *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		expires = &e
	}
	if err := s.creds.Save(ctx, doctor, raw, expires); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// persistingSource stores every new access token handed out by base.
type persistingSource struct {
	mu          sync.Mutex
	base        oauth2.TokenSource
	last        string
	refreshable bool
	onSave      func(*oauth2.Token) error
	log         *logger.Logger
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		if !p.refreshable {
			return nil, fmt.Errorf("%w: %v", emr.ErrCredentialRejected, err)
		}
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.onSave(tok); err != nil {
			p.log.Error(err, "failed to persist refreshed token")
		} else {
			p.last = tok.AccessToken
		}
	}
	return tok, nil
}

// Credential implements emr.Credential over an oauth2.TokenSource.
type Credential struct {
	src oauth2.TokenSource

	mu      sync.Mutex
	invalid bool
}

var _ emr.Credential = (*Credential)(nil)

// NewCredential wraps src; Apply fails once src stops handing out valid tokens.
func NewCredential(src oauth2.TokenSource) *Credential {
	return &Credential{src: src}
}

// Apply sets the Authorization header, refreshing the token when it expired.
func (c *Credential) Apply(h http.Header) error {
	tok, err := c.src.Token()
	if err != nil {
		return err
	}
	if !tok.Valid() {
		return fmt.Errorf("%w: token is not valid", emr.ErrCredentialRejected)
	}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return nil
}

func (c *Credential) Invalid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalid
}

func (c *Credential) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalid = true
}
