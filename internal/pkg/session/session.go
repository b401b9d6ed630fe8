package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"
	"github.com/google/uuid"

	"github.com/digiworld/backoffice/internal/pkg/cache"
	"github.com/digiworld/backoffice/internal/pkg/env"
)

const keyPrefix = "session:"

// ErrNoSession is returned for unknown, expired or destroyed sessions.
var ErrNoSession = errors.New("session not found or expired")

// Session is an admin login. ExpiresAt slides forward on every authenticated request.
type Session struct {
	ID        string    `json:"id"`
	AdminID   uint      `json:"admin_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store keeps sessions in any fiber.Storage backend.
type Store struct {
	storage fiber.Storage
	idle    time.Duration
	now     func() time.Time
}

func NewStore(storage fiber.Storage, idle time.Duration) *Store {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Store{storage: storage, idle: idle, now: time.Now}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Idle() time.Duration {
	return s.idle
}

func (s *Store) Create(adminID uint, email string) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		AdminID:   adminID,
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.idle),
	}
	if err := s.save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Touch loads a live session and extends its idle deadline.
func (s *Store) Touch(id string) (*Session, error) {
	raw, err := s.storage.Get(keyPrefix + id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoSession
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, ErrNoSession
	}

	now := s.now()
	if sess.Expired(now) {
		_ = s.storage.Delete(keyPrefix + id)
		return nil, ErrNoSession
	}

	sess.ExpiresAt = now.Add(s.idle)
	if err := s.save(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) Destroy(id string) error {
	return s.storage.Delete(keyPrefix + id)
}

func (s *Store) save(sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	// the backend expiry only reclaims space, ExpiresAt is authoritative
	return s.storage.Set(keyPrefix+sess.ID, raw, s.idle)
}

// NewRedisStorage builds the session backend from the cache connection settings,
// on a separate Redis database.
func NewRedisStorage() fiber.Storage {
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
