package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/emr/emrtest"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/repository"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
	"github.com/jwalitptl/checkin-kiosk/pkg/logger"
)

type memoryCredentials struct {
	mu     sync.Mutex
	tokens map[int64][]byte
	saves  int
}

func newMemoryCredentials() *memoryCredentials {
	return &memoryCredentials{tokens: map[int64][]byte{}}
}

func (m *memoryCredentials) Save(ctx context.Context, doctorID int64, token []byte, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[doctorID] = token
	m.saves++
	return nil
}

func (m *memoryCredentials) Get(ctx context.Context, doctorID int64) (*model.StoredCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[doctorID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.StoredCredential{DoctorID: doctorID, Token: tok}, nil
}

func (m *memoryCredentials) Delete(ctx context.Context, doctorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, doctorID)
	return nil
}

func (m *memoryCredentials) token(t *testing.T, doctor int64) *oauth2.Token {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var tok oauth2.Token
	require.NoError(t, json.Unmarshal(m.tokens[doctor], &tok))
	return &tok
}

// recordingConnector hands out one fake and remembers the credentials used.
type recordingConnector struct {
	records *emrtest.Records
	mu      sync.Mutex
	headers []string
}

func (c *recordingConnector) Connect(cred emr.Credential) emr.RecordService {
	h := http.Header{}
	if err := cred.Apply(h); err == nil {
		c.mu.Lock()
		c.headers = append(c.headers, h.Get("Authorization"))
		c.mu.Unlock()
	}
	return c.records
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"first","token_type":"Bearer","refresh_token":"r1","expires_in":3600}`)
		case "refresh_token":
			assert.Equal(t, "r1", r.Form.Get("refresh_token"))
			fmt.Fprint(w, `{"access_token":"second","token_type":"Bearer","refresh_token":"r2","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, records *emrtest.Records) (*Service, *memoryCredentials, *recordingConnector) {
	t.Helper()
	srv := newTokenServer(t)
	provider := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://kiosk.local/oauth2",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/o/authorize/",
			TokenURL:  srv.URL + "/o/token/",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	creds := newMemoryCredentials()
	connector := &recordingConnector{records: records}
	return NewService(provider, connector, creds, logger.Nop(), nil), creds, connector
}

func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "offline", u.Query().Get("access_type"))
	return u.Query().Get("state")
}

func TestAuthorizationFlow(t *testing.T) {
	records := &emrtest.Records{User: &model.User{ID: 7, Username: "drwho", IsDoctor: true}}
	svc, creds, connector := newTestService(t, records)

	state := stateOf(t, svc.BeginAuthorization())
	require.NotEmpty(t, state)

	doctor, err := svc.Complete(context.Background(), state, "good-code")
	require.NoError(t, err)
	assert.Equal(t, int64(7), doctor)
	assert.Equal(t, []string{"Bearer first"}, connector.headers)
	assert.Equal(t, "r1", creds.token(t, 7).RefreshToken)

	// A state is accepted once.
	_, err = svc.Complete(context.Background(), state, "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestComplete_UnknownState(t *testing.T) {
	svc, _, _ := newTestService(t, &emrtest.Records{})

	_, err := svc.Complete(context.Background(), "forged", "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Complete(context.Background(), "", "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestComplete_BadCode(t *testing.T) {
	svc, creds, _ := newTestService(t, &emrtest.Records{User: &model.User{ID: 7}})
	state := stateOf(t, svc.BeginAuthorization())

	_, err := svc.Complete(context.Background(), state, "bad-code")
	require.Error(t, err)
	assert.Empty(t, creds.tokens)
}

func TestCredential_RefreshesAndPersists(t *testing.T) {
	svc, creds, _ := newTestService(t, &emrtest.Records{})

	expired, err := json.Marshal(&oauth2.Token{
		AccessToken:  "first",
		TokenType:    "Bearer",
		RefreshToken: "r1",
		Expiry:       time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	creds.tokens[7] = expired

	cred, err := svc.Credential(context.Background(), 7)
	require.NoError(t, err)

	h := http.Header{}
	require.NoError(t, cred.Apply(h))
	assert.Equal(t, "Bearer second", h.Get("Authorization"))
	assert.Equal(t, "r2", creds.token(t, 7).RefreshToken)
	assert.Equal(t, 1, creds.saves)

	// Reusing the refreshed token does not write again.
	require.NoError(t, cred.Apply(h))
	assert.Equal(t, 1, creds.saves)
}

func TestCredential_ExpiredWithoutRefreshTokenIsRejected(t *testing.T) {
	svc, creds, _ := newTestService(t, &emrtest.Records{})

	expired, err := json.Marshal(&oauth2.Token{AccessToken: "first", TokenType: "Bearer", Expiry: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	creds.tokens[7] = expired

	cred, err := svc.Credential(context.Background(), 7)
	require.NoError(t, err)
	assert.ErrorIs(t, cred.Apply(http.Header{}), emr.ErrCredentialRejected)
}

func TestCredential_Missing(t *testing.T) {
	svc, _, _ := newTestService(t, &emrtest.Records{})

	_, err := svc.Credential(context.Background(), 7)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestVerify_RejectedCredentialIsForgotten(t *testing.T) {
	svc, creds, _ := newTestService(t, &emrtest.Records{})

	valid, err := json.Marshal(&oauth2.Token{AccessToken: "first", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	creds.tokens[7] = valid

	err = svc.Verify(context.Background(), 7)
	assert.True(t, apperrors.IsUnauthenticated(err))
	assert.NotContains(t, creds.tokens, int64(7))
}

func TestCredentialInvalidate(t *testing.T) {
	cred := NewCredential(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "a"}))
	assert.False(t, cred.Invalid())
	cred.Invalidate()
	assert.True(t, cred.Invalid())
}
