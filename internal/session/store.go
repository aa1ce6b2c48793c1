// Package session keeps browser sessions server-side in Redis. The cookie only carries a
// signed session id (see Codec).
package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

const keyPrefix = "session:"

// Session binds a browser to an identity.
type Session struct {
	ID         string
	IdentityID int64
	CreatedAt  time.Time
}

// Store persists sessions with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewStore builds a redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Store{client: client, ttl: ttl, now: time.Now}
}

// TTL is the idle lifetime of a session.
func (s *Store) TTL() time.Duration { return s.ttl }

func key(id string) string { return keyPrefix + id }

// Create opens a new session for the identity.
func (s *Store) Create(ctx context.Context, identityID int64) (*Session, error) {
	sess := &Session{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		CreatedAt:  s.now().UTC(),
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key(sess.ID),
			"identity_id", sess.IdentityID,
			"created_at", sess.CreatedAt.Unix(),
		)
		pipe.Expire(ctx, key(sess.ID), s.ttl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session and extends its TTL.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	values, err := s.client.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	identityID, err := strconv.ParseInt(values["identity_id"], 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	createdAt, _ := strconv.ParseInt(values["created_at"], 10, 64)

	if err := s.client.Expire(ctx, key(id), s.ttl).Err(); err != nil {
		return nil, err
	}
	return &Session{ID: id, IdentityID: identityID, CreatedAt: time.Unix(createdAt, 0).UTC()}, nil
}

// Destroy removes the session. Unknown ids are not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, key(id)).Err()
}

// Regenerate replaces the current session (if any) with a fresh id bound to identityID.
func (s *Store) Regenerate(ctx context.Context, currentID string, identityID int64) (*Session, error) {
	if err := s.Destroy(ctx, currentID); err != nil {
		return nil, err
	}
	return s.Create(ctx, identityID)
}
