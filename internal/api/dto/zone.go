package dto

import (
	"time"

	"field-route-service/internal/domain"
)

type ZoneFileResponse struct {
	Zone       int         `json:"zone"`
	Plan       domain.Plan `json:"plan"`
	FileName   string      `json:"file_name"`
	Size       int64       `json:"size"`
	ModifiedAt time.Time   `json:"modified_at"`
}

type ListZonesResponse struct {
	Files []ZoneFileResponse `json:"files"`
}

// KMLSummaryResponse describes a load without the full route geometry.
type KMLSummaryResponse struct {
	Success       bool        `json:"success"`
	Zone          int         `json:"zone"`
	Plan          domain.Plan `json:"plan"`
	Name          string      `json:"name,omitempty"`
	RouteCount    int         `json:"route_count"`
	TotalPoints   int         `json:"total_points"`
	FileSizeChars int         `json:"file_size_chars"`
	LoadTimeMs    int64       `json:"load_time_ms"`
	IsValid       bool        `json:"is_valid"`
	Cached        bool        `json:"cached"`
}

type ValidationResponse struct {
	Zone       int                     `json:"zone"`
	Plan       domain.Plan             `json:"plan"`
	Validation domain.ValidationResult `json:"validation"`
	Report     string                  `json:"report"`
}
