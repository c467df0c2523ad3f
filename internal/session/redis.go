// Package session keeps chat sessions between requests, in Redis or in
// process memory.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

const keyPrefix = "chat_session:"

// DefaultTTL is the idle lifetime of a session.
const DefaultTTL = 24 * time.Hour

// RedisStore stores sessions as JSON values with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A ttl of zero uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		tracer: otel.Tracer("tekki.internal.session"),
		ttl:    ttl,
	}
}

// Get returns the session or nil when it does not exist or expired.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.StoreError("session.Get", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		span.RecordError(err)
		return nil, apperrors.StoreError("session.Get", err)
	}
	return &sess, nil
}

// Save writes the session and restarts its TTL.
func (s *RedisStore) Save(ctx context.Context, sess *domain.Session) error {
	ctx, span := s.tracer.Start(ctx, "session.save", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.Int("session.messages", len(sess.Messages)),
	))
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return apperrors.StoreError("session.Save", err)
	}
	if err := s.client.Set(ctx, key(sess.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return apperrors.StoreError("session.Save", err)
	}
	return nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		span.RecordError(err)
		return apperrors.StoreError("session.Delete", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func key(id string) string {
	return keyPrefix + id
}
