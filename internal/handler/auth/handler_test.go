package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/checkin-kiosk/internal/handler/handlertest"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	authsvc "github.com/jwalitptl/checkin-kiosk/internal/service/auth"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
)

const consentURL = "https://provider.test/o/authorize/?state=s1"

type fakeAuthorizer struct {
	verifyErr error
	doctor    int64
}

func (f *fakeAuthorizer) BeginAuthorization() string { return consentURL }

func (f *fakeAuthorizer) Complete(ctx context.Context, state, code string) (int64, error) {
	if state != "s1" {
		return 0, apperrors.BadRequest("invalid authorization state", authsvc.ErrInvalidState)
	}
	return f.doctor, nil
}

func (f *fakeAuthorizer) Verify(ctx context.Context, doctor int64) error {
	return f.verifyErr
}

type fakeSessions struct {
	sessions map[string]int64
	resolve  error
}

func (f *fakeSessions) Start(ctx context.Context, doctor int64) (string, error) {
	f.sessions["tok"] = doctor
	return "tok", nil
}

func (f *fakeSessions) Resolve(ctx context.Context, token string) (*model.Session, error) {
	if f.resolve != nil {
		return nil, f.resolve
	}
	doctor, ok := f.sessions[token]
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	return &model.Session{ID: token, DoctorID: doctor}, nil
}

func (f *fakeSessions) End(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessions) TTL() time.Duration { return time.Hour }

func setup(authorizer *fakeAuthorizer, sessions *fakeSessions) *gin.Engine {
	r := handlertest.Engine(0, nil)
	NewHandler(authorizer, sessions, CookieConfig{Name: "session", Secure: true}).RegisterRoutes(&r.RouterGroup)
	return r
}

func get(r http.Handler, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		cookie   string
		verify   error
		resolve  error
		status   int
		location string
	}{
		{name: "no session", status: http.StatusFound, location: consentURL},
		{name: "working credential", cookie: "tok", status: http.StatusFound, location: "/dashboard"},
		{name: "rejected credential", cookie: "tok", verify: apperrors.ErrUnauthenticated, status: http.StatusFound, location: consentURL},
		{name: "unknown cookie", cookie: "stale", status: http.StatusFound, location: consentURL},
		{name: "upstream down", cookie: "tok", verify: &apperrors.UpstreamError{Status: 503}, status: http.StatusBadGateway},
		{name: "session store down", cookie: "tok", resolve: apperrors.Internal(errors.New("redis")), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{sessions: map[string]int64{"tok": 7}, resolve: tt.resolve}
			r := setup(&fakeAuthorizer{verifyErr: tt.verify}, sessions)

			for _, path := range []string{"/", "/login"} {
				w := get(r, path, tt.cookie)
				assert.Equal(t, tt.status, w.Code, path)
				if tt.location != "" {
					assert.Equal(t, tt.location, w.Header().Get("Location"), path)
				}
			}
		})
	}
}

func TestCallback(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]int64{}}
	r := setup(&fakeAuthorizer{doctor: 7}, sessions)

	w := get(r, "/oauth2?state=s1&code=abc", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Equal(t, int64(7), sessions.sessions["tok"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestCallback_Rejected(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]int64{}}
	r := setup(&fakeAuthorizer{doctor: 7}, sessions)

	w := get(r, "/oauth2?state=forged&code=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/oauth2?error=access_denied", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sessions.sessions)
}

func TestLogout(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]int64{"tok": 7}}
	r := setup(&fakeAuthorizer{}, sessions)

	w := get(r, "/logout", "tok")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sessions.sessions)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
