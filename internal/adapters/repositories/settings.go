package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"field-route-service/internal/domain"
)

const (
	settingString  = "string"
	settingNumber  = "number"
	settingBoolean = "boolean"
	settingJSON    = "json"
)

// GetSetting returns the typed value of key: string, float64, bool, or the
// decoded JSON value.
func (s *Store) GetSetting(ctx context.Context, key string) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var value, typ string
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT value, type FROM settings WHERE key = ?;`), key).Scan(&value, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get setting %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}
	return decodeSetting(value, typ)
}

func (s *Store) SetSetting(ctx context.Context, key string, v any) error {
	if err := s.check(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return &domain.FieldError{Field: "key", Reason: "must not be empty"}
	}

	value, typ, err := encodeSetting(v)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	_, err = s.DB.ExecContext(ctx, s.q(`
	INSERT INTO settings (key, value, type)
	VALUES (?, ?, ?)
	ON CONFLICT (key) DO UPDATE SET
		value = excluded.value,
		type = excluded.type;
	`), key, value, typ)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func encodeSetting(v any) (value, typ string, err error) {
	switch x := v.(type) {
	case string:
		return x, settingString, nil
	case bool:
		return strconv.FormatBool(x), settingBoolean, nil
	case int:
		return strconv.Itoa(x), settingNumber, nil
	case int64:
		return strconv.FormatInt(x, 10), settingNumber, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), settingNumber, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", "", fmt.Errorf("encode %T: %w", v, err)
	}
	return string(b), settingJSON, nil
}

func decodeSetting(value, typ string) (any, error) {
	switch typ {
	case settingString:
		return value, nil
	case settingNumber:
		return strconv.ParseFloat(value, 64)
	case settingBoolean:
		return strconv.ParseBool(value)
	case settingJSON:
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return nil, fmt.Errorf("decode json setting: %w", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown setting type %q", typ)
}
