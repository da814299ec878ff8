package kmlload

import (
	"field-route-service/internal/domain"
)

type LoadMetadata struct {
	LoadTimeMs    int64 `json:"load_time_ms"`
	FileSizeChars int   `json:"file_size_chars"`
	RouteCount    int   `json:"route_count"`
	TotalPoints   int   `json:"total_points"`
	IsValid       bool  `json:"is_valid"`
	Error         bool  `json:"error,omitempty"`
}

// LoadResult is the outcome of one load. Results are shared between
// coalesced callers and the cache, so callers must treat them as read-only.
type LoadResult struct {
	Success    bool                     `json:"success"`
	Zone       int                      `json:"zone"`
	Plan       domain.Plan              `json:"plan"`
	Document   *domain.ParsedDocument   `json:"document,omitempty"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
	Metadata   LoadMetadata             `json:"metadata"`
	Err        error                    `json:"-"`
	Error      string                   `json:"error,omitempty"`
	// Content is the raw text the document was parsed from.
	Content string `json:"-"`
}

// Key returns the zone/plan the result belongs to.
func (r *LoadResult) Key() domain.ZoneKey {
	return domain.ZoneKey{Zone: r.Zone, Plan: r.Plan}
}

func failure(key domain.ZoneKey, err error, elapsedMs int64) *LoadResult {
	return &LoadResult{
		Zone:     key.Zone,
		Plan:     key.Plan,
		Metadata: LoadMetadata{LoadTimeMs: elapsedMs, Error: true},
		Err:      err,
		Error:    err.Error(),
	}
}

type CacheStats struct {
	Size     int      `json:"size"`
	Capacity int      `json:"capacity"`
	Keys     []string `json:"keys"`
}
