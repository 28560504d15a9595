package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/checkin-kiosk/internal/handler"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
)

type Authorizer interface {
	BeginAuthorization() string
	Complete(ctx context.Context, state, code string) (int64, error)
	Verify(ctx context.Context, doctor int64) error
}

type Sessions interface {
	Start(ctx context.Context, doctor int64) (string, error)
	Resolve(ctx context.Context, token string) (*model.Session, error)
	End(ctx context.Context, token string) error
	TTL() time.Duration
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	authorizer Authorizer
	sessions   Sessions
	cookie     CookieConfig
}

func NewHandler(authorizer Authorizer, sessions Sessions, cookie CookieConfig) *Handler {
	return &Handler{
		authorizer: authorizer,
		sessions:   sessions,
		cookie:     cookie,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/", h.Login)
	r.GET("/login", h.Login)
	r.GET("/oauth2", h.Callback)
	r.GET("/logout", h.Logout)
}

// Login sends a doctor with a working credential to the dashboard and
// everybody else to the provider's consent page.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	token, _ := c.Cookie(h.cookie.Name)
	if session, err := h.sessions.Resolve(ctx, token); err == nil {
		err = h.authorizer.Verify(ctx, session.DoctorID)
		switch {
		case err == nil:
			c.Redirect(http.StatusFound, "/dashboard")
			return
		case !apperrors.IsUnauthenticated(err):
			_ = c.Error(err)
			return
		}
	} else if !apperrors.IsUnauthenticated(err) {
		_ = c.Error(err)
		return
	}

	c.Redirect(http.StatusFound, h.authorizer.BeginAuthorization())
}

// Callback completes the authorization the provider redirected back from and
// opens a session for the doctor.
func (h *Handler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		_ = c.Error(apperrors.Unauthorized(errors.New("authorization denied: " + reason)))
		return
	}

	ctx := c.Request.Context()
	doctor, err := h.authorizer.Complete(ctx, c.Query("state"), c.Query("code"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	token, err := h.sessions.Start(ctx, doctor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setCookie(c, token, int(h.sessions.TTL().Seconds()))
	log.Info().Int64("doctor_id", doctor).Msg("Doctor signed in")
	c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.cookie.Name)
	if err := h.sessions.End(c.Request.Context(), token); err != nil {
		_ = c.Error(err)
		return
	}

	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"signed_out": true}))
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
