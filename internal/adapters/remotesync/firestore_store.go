package remotesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

const (
	routesCollection   = "routes"
	accountsCollection = "accounts"
	sessionsCollection = "sessions"
)

// FirestoreStore keeps synced routes, accounts and sessions in Firestore.
// Accounts are keyed by lowercased email, sessions by token.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// NewFirestoreClient creates a client for projectID. An empty credsFile
// falls back to application default credentials.
func NewFirestoreClient(ctx context.Context, projectID, credsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}
	return client, nil
}

var (
	_ ports.RouteStore   = (*FirestoreStore)(nil)
	_ ports.AccountStore = (*FirestoreStore)(nil)
)

func (s *FirestoreStore) SaveRoute(ctx context.Context, route *domain.SyncedRoute) (err error) {
	defer obs.Time(ctx, "firestore.SaveRoute")(&err)

	if route.ID == "" {
		return fmt.Errorf("route id is required")
	}
	ref := s.client.Collection(routesCollection).Doc(route.ID)
	if _, err := ref.Set(ctx, route); err != nil {
		return fmt.Errorf("save route %s: %w", route.ID, err)
	}
	return nil
}

func (s *FirestoreStore) GetRoute(ctx context.Context, id string) (*domain.SyncedRoute, error) {
	var r domain.SyncedRoute
	if err := s.get(ctx, routesCollection, id, &r); err != nil {
		return nil, fmt.Errorf("get route %s: %w", id, err)
	}
	return &r, nil
}

func (s *FirestoreStore) ListRoutes(ctx context.Context, userID string, includePublic bool) (_ []*domain.SyncedRoute, err error) {
	defer obs.Time(ctx, "firestore.ListRoutes")(&err)

	col := s.client.Collection(routesCollection)
	queries := []firestore.Query{col.Where("user_id", "==", userID)}
	if includePublic {
		queries = append(queries, col.Where("is_public", "==", true))
	}

	seen := map[string]struct{}{}
	out := make([]*domain.SyncedRoute, 0, 16)
	for _, q := range queries {
		iter := q.Documents(ctx)
		for {
			doc, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("list routes for %s: %w", userID, err)
			}
			var r domain.SyncedRoute
			if err := doc.DataTo(&r); err != nil {
				iter.Stop()
				return nil, fmt.Errorf("decode route %s: %w", doc.Ref.ID, err)
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, &r)
		}
		iter.Stop()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *FirestoreStore) DeleteRoute(ctx context.Context, id string) error {
	if _, err := s.GetRoute(ctx, id); err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if _, err := s.client.Collection(routesCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete route %s: %w", id, err)
	}
	return nil
}

// CreateAccount fails with a FieldError when the email is taken.
func (s *FirestoreStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	ref := s.client.Collection(accountsCollection).Doc(strings.ToLower(acc.Email))
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if snap != nil && snap.Exists() {
			return &domain.FieldError{Field: "email", Reason: "already registered"}
		}
		if err != nil && snap == nil {
			return err
		}
		return tx.Create(ref, acc)
	})
	if err != nil {
		return fmt.Errorf("create account %s: %w", acc.Email, err)
	}
	return nil
}

func (s *FirestoreStore) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var acc domain.Account
	if err := s.get(ctx, accountsCollection, strings.ToLower(email), &acc); err != nil {
		return nil, fmt.Errorf("account %s: %w", email, err)
	}
	return &acc, nil
}

func (s *FirestoreStore) SaveSession(ctx context.Context, sess domain.Session) error {
	if _, err := s.client.Collection(sessionsCollection).Doc(sess.Token).Set(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *FirestoreStore) SessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	if err := s.get(ctx, sessionsCollection, token, &sess); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &sess, nil
}

func (s *FirestoreStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.client.Collection(sessionsCollection).Doc(token).Delete(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// get decodes one document into dst. A missing document maps to
// domain.ErrNotFound.
func (s *FirestoreStore) get(ctx context.Context, collection, id string, dst any) error {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if snap != nil && !snap.Exists() {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}
