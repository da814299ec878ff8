package ports

import (
	"context"
	"field-route-service/internal/domain"
	"time"
)

// A provisioned KML file as seen by the source.
type KMLFileInfo struct {
	Key        domain.ZoneKey `json:"key"`
	FileName   string         `json:"file_name"`
	Size       int64          `json:"size"`
	ModifiedAt time.Time      `json:"modified_at"`
}

// Port: raw KML text access, one file per zone/plan.
type KMLSource interface {
	// Report whether a file is provisioned for key.
	Exists(ctx context.Context, key domain.ZoneKey) (bool, error)
	// Return the full text of the file for key.
	ReadText(ctx context.Context, key domain.ZoneKey) (string, error)
	// List every provisioned file.
	ListAvailable(ctx context.Context) ([]KMLFileInfo, error)
}
