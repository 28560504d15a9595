package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/repository"
	"github.com/jwalitptl/checkin-kiosk/pkg/circuitbreaker"
)

const sessionKeyPrefix = "session:"

type sessionRepository struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

func NewSessionRepository(client *redis.Client, logger *zerolog.Logger) repository.SessionRepository {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-sessions",
		MaxFailures: 5,
		Timeout:     5 * time.Second,
		IsFailure: func(err error) bool {
			return !errors.Is(err, redis.Nil)
		},
	})

	return &sessionRepository{
		client: client,
		cb:     cb,
		logger: logger,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = r.cb.Execute(func() error {
		return r.client.Set(ctx, sessionKey(session.ID), payload, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	var payload []byte
	err := r.cb.Execute(func() error {
		var err error
		payload, err = r.client.Get(ctx, sessionKey(id)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		r.logger.Warn().Err(err).Str("session_id", id).Msg("discarding unreadable session")
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	err := r.cb.Execute(func() error {
		return r.client.Del(ctx, sessionKey(id)).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
