package remotesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// SessionTTL bounds how long a sync session token stays valid.
const SessionTTL = 30 * 24 * time.Hour

// RedisStore keeps synced routes, accounts and sessions in Redis as JSON
// values. Route ids are indexed per owner and in a public set.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

var (
	_ ports.RouteStore   = (*RedisStore)(nil)
	_ ports.AccountStore = (*RedisStore)(nil)
)

const publicRoutesKey = "routes:public"

func routeKey(id string) string          { return "route:" + id }
func userRoutesKey(userID string) string { return "user:" + userID + ":routes" }
func accountKey(email string) string     { return "account:" + strings.ToLower(email) }
func sessionKey(token string) string     { return "session:" + token }

// accountRecord keeps the password hash, which domain.Account hides from JSON.
type accountRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *RedisStore) SaveRoute(ctx context.Context, route *domain.SyncedRoute) (err error) {
	defer obs.Time(ctx, "redis.SaveRoute")(&err)

	b, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("save route %s: encode: %w", route.ID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, routeKey(route.ID), b, 0)
		p.SAdd(ctx, userRoutesKey(route.UserID), route.ID)
		if route.IsPublic {
			p.SAdd(ctx, publicRoutesKey, route.ID)
		} else {
			p.SRem(ctx, publicRoutesKey, route.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save route %s: %w", route.ID, err)
	}
	return nil
}

func (s *RedisStore) GetRoute(ctx context.Context, id string) (*domain.SyncedRoute, error) {
	b, err := s.rdb.Get(ctx, routeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get route %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route %s: %w", id, err)
	}
	var r domain.SyncedRoute
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("get route %s: decode: %w", id, err)
	}
	return &r, nil
}

// ListRoutes returns routes newest first.
func (s *RedisStore) ListRoutes(ctx context.Context, userID string, includePublic bool) (_ []*domain.SyncedRoute, err error) {
	defer obs.Time(ctx, "redis.ListRoutes")(&err)

	var ids []string
	if includePublic {
		ids, err = s.rdb.SUnion(ctx, userRoutesKey(userID), publicRoutesKey).Result()
	} else {
		ids, err = s.rdb.SMembers(ctx, userRoutesKey(userID)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("list routes for %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return []*domain.SyncedRoute{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = routeKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list routes for %s: mget: %w", userID, err)
	}

	out := make([]*domain.SyncedRoute, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Index entry without a value.
			continue
		}
		var r domain.SyncedRoute
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("list routes: decode %s: %w", ids[i], err)
		}
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *RedisStore) DeleteRoute(ctx context.Context, id string) error {
	r, err := s.GetRoute(ctx, id)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, routeKey(id))
		p.SRem(ctx, userRoutesKey(r.UserID), id)
		p.SRem(ctx, publicRoutesKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete route %s: %w", id, err)
	}
	return nil
}

// CreateAccount fails with a FieldError when the email is taken.
func (s *RedisStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	b, err := json.Marshal(accountRecord{
		ID:           acc.ID,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		CreatedAt:    acc.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("create account: encode: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, accountKey(acc.Email), b, 0).Result()
	if err != nil {
		return fmt.Errorf("create account %s: %w", acc.Email, err)
	}
	if !ok {
		return &domain.FieldError{Field: "email", Reason: "already registered"}
	}
	return nil
}

func (s *RedisStore) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	b, err := s.rdb.Get(ctx, accountKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", email, err)
	}
	var rec accountRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("account %s: decode: %w", email, err)
	}
	return &domain.Account{ID: rec.ID, Email: rec.Email, PasswordHash: rec.PasswordHash, CreatedAt: rec.CreatedAt}, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, sess domain.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("save session: encode: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.Token), b, SessionTTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) SessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	b, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
