package ports

import (
	"context"
	"field-route-service/internal/domain"
	"time"
)

// Persisted copy of a loaded KML file and its parsed form.
type KMLCacheEntry struct {
	Key          domain.ZoneKey
	Content      string
	ParsedData   []byte
	FileSize     int
	LastModified time.Time
}

// Port: KML cache rows keyed by zone/plan with upsert semantics.
type KMLCacheRepository interface {
	SaveKMLCache(ctx context.Context, entry KMLCacheEntry) error
	// Return the row for key. ok is false when no row exists.
	GetKMLCache(ctx context.Context, key domain.ZoneKey) (_ *KMLCacheEntry, ok bool, err error)
}
