package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// Port: typed key/value settings. Values are string, float64, bool or a
// JSON-compatible value.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (any, error)
	SetSetting(ctx context.Context, key string, value any) error
}

// Port: service zone records.
type ZoneRepository interface {
	InsertZone(ctx context.Context, zone domain.Zone) error
	ListZones(ctx context.Context) ([]domain.Zone, error)
	GetZone(ctx context.Context, id int) (*domain.Zone, error)
}
