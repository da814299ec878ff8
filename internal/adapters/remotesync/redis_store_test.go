package remotesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"field-route-service/internal/domain"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStoreRoutes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	mine := &domain.SyncedRoute{ID: "r1", UserID: "u1", Name: "Giro mattina", ZoneID: 9, Plan: domain.PlanB, UpdatedAt: base}
	shared := &domain.SyncedRoute{ID: "r2", UserID: "u2", Name: "Giro pubblico", ZoneID: 9, Plan: domain.PlanA, IsPublic: true, UpdatedAt: base.Add(time.Hour)}
	private := &domain.SyncedRoute{ID: "r3", UserID: "u2", Name: "Privato", ZoneID: 9, Plan: domain.PlanA, UpdatedAt: base}

	for _, r := range []*domain.SyncedRoute{mine, shared, private} {
		if err := s.SaveRoute(ctx, r); err != nil {
			t.Fatalf("SaveRoute %s: %v", r.ID, err)
		}
	}

	got, err := s.GetRoute(ctx, "r1")
	if err != nil || got.Name != "Giro mattina" {
		t.Fatalf("GetRoute = %+v, %v", got, err)
	}

	own, err := s.ListRoutes(ctx, "u1", false)
	if err != nil || len(own) != 1 {
		t.Fatalf("ListRoutes own = %d, %v", len(own), err)
	}
	all, err := s.ListRoutes(ctx, "u1", true)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListRoutes with public = %d, %v", len(all), err)
	}
	if all[0].ID != "r2" {
		t.Fatalf("expected newest first, got %s", all[0].ID)
	}

	shared.IsPublic = false
	if err := s.SaveRoute(ctx, shared); err != nil {
		t.Fatalf("SaveRoute: %v", err)
	}
	all, _ = s.ListRoutes(ctx, "u1", true)
	if len(all) != 1 {
		t.Fatalf("unpublished route still listed: %d", len(all))
	}

	if err := s.DeleteRoute(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRoute: %v", err)
	}
	if _, err := s.GetRoute(ctx, "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteRoute(ctx, "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	own, _ = s.ListRoutes(ctx, "u1", false)
	if len(own) != 0 {
		t.Fatalf("deleted route still indexed: %d", len(own))
	}
}

func TestRedisStoreAccounts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	acc := &domain.Account{ID: "u1", Email: "Mario@Example.com", PasswordHash: []byte("hash"), CreatedAt: time.Now()}
	if err := s.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := s.CreateAccount(ctx, acc); !domain.IsFieldError(err) {
		t.Fatalf("expected FieldError for duplicate email, got %v", err)
	}

	got, err := s.AccountByEmail(ctx, "mario@example.com")
	if err != nil {
		t.Fatalf("AccountByEmail: %v", err)
	}
	if got.ID != "u1" || string(got.PasswordHash) != "hash" {
		t.Fatalf("password hash not kept: %+v", got)
	}
	if _, err := s.AccountByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreSessions(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	sess := domain.Session{Token: "tok", UserID: "u1", Email: "a@b.it"}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if ttl := mr.TTL(sessionKey("tok")); ttl != SessionTTL {
		t.Fatalf("session ttl = %v", ttl)
	}
	got, err := s.SessionByToken(ctx, "tok")
	if err != nil || got.UserID != "u1" {
		t.Fatalf("SessionByToken = %+v, %v", got, err)
	}

	if err := s.DeleteSession(ctx, "tok"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.SessionByToken(ctx, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = s.SaveSession(ctx, sess)
	mr.FastForward(SessionTTL + time.Second)
	if _, err := s.SessionByToken(ctx, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
