package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/service/auth"
)

const (
	ContextDoctorID = "doctor_id"
	ContextRecords  = "records"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.Session, error)
}

type CredentialStore interface {
	Credential(ctx context.Context, doctor int64) (*auth.Credential, error)
	Forget(ctx context.Context, doctor int64) error
}

// AuthMiddleware binds the request to the signed-in doctor and to a record
// service acting with that doctor's credential.
type AuthMiddleware struct {
	sessions   SessionResolver
	creds      CredentialStore
	connector  emr.Connector
	cookieName string
}

func NewAuthMiddleware(sessions SessionResolver, creds CredentialStore, connector emr.Connector, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		sessions:   sessions,
		creds:      creds,
		connector:  connector,
		cookieName: cookieName,
	}
}

// Authenticate aborts with the Unauthenticated error when there is no session
// or no stored credential. A credential the upstream rejected while handling
// the request is forgotten afterwards.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, _ := c.Cookie(m.cookieName)
		session, err := m.sessions.Resolve(ctx, token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		cred, err := m.creds.Credential(ctx, session.DoctorID)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextDoctorID, session.DoctorID)
		c.Set(ContextRecords, m.connector.Connect(cred))
		c.Next()

		if cred.Invalid() {
			// The request context may already be done.
			if err := m.creds.Forget(context.WithoutCancel(ctx), session.DoctorID); err != nil {
				log.Error().Err(err).Int64("doctor_id", session.DoctorID).Msg("failed to forget rejected credential")
			}
		}
	}
}

// DoctorID returns the doctor bound by Authenticate.
func DoctorID(c *gin.Context) int64 {
	return c.GetInt64(ContextDoctorID)
}

// Records returns the record service bound by Authenticate, nil outside of
// authenticated routes.
func Records(c *gin.Context) emr.RecordService {
	v, ok := c.Get(ContextRecords)
	if !ok {
		return nil
	}
	records, _ := v.(emr.RecordService)
	return records
}
