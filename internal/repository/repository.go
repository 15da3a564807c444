package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"picolink/internal/payload"
	"picolink/internal/types"
)

//go:embed sql/upsert-device.sql
var upsertDeviceSQL string

//go:embed sql/insert-payload.sql
var insertPayloadSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-devices.sql
var getDevicesSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

var ErrEmptyDeviceID = errors.New("device id is required")

type UplinkRepository interface {
	// InsertPayload stores the raw payload and its decoded readings in one
	// transaction and returns the new payload id.
	InsertPayload(ctx context.Context, deviceID string, receivedAt time.Time, p payload.Payload, readings [payload.TripletsPerPayload]payload.Reading) (int64, error)
	GetDevices(ctx context.Context) ([]types.Device, error)
	// GetLatestReadings returns up to limit readings of deviceID, newest first.
	GetLatestReadings(ctx context.Context, deviceID string, limit int) ([]types.Reading, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) UplinkRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertPayload(ctx context.Context, deviceID string, receivedAt time.Time, p payload.Payload, readings [payload.TripletsPerPayload]payload.Reading) (int64, error) {
	if deviceID == "" {
		return 0, ErrEmptyDeviceID
	}
	ts := receivedAt.UTC().Format(time.RFC3339Nano)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertDeviceSQL, deviceID, ts); err != nil {
		return 0, fmt.Errorf("upsert device %q: %w", deviceID, err)
	}

	res, err := tx.ExecContext(ctx, insertPayloadSQL, deviceID, ts, p.String())
	if err != nil {
		return 0, fmt.Errorf("insert payload: %w", err)
	}
	payloadID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("payload id: %w", err)
	}

	for slot, rd := range readings {
		if _, err := tx.ExecContext(ctx, insertReadingSQL, payloadID, slot, rd.Temperature(), rd.Humidity); err != nil {
			return 0, fmt.Errorf("insert reading slot %d: %w", slot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return payloadID, nil
}

func (r *repositoryImpl) GetDevices(ctx context.Context) ([]types.Device, error) {
	rows, err := r.db.QueryContext(ctx, getDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close devices rows", "error", err)
		}
	}()

	var out []types.Device
	for rows.Next() {
		var (
			d                   types.Device
			firstSeen, lastSeen string
		)
		if err := rows.Scan(&d.ID, &firstSeen, &lastSeen); err != nil {
			return nil, err
		}
		if d.FirstSeen, err = parseTimestamp(firstSeen); err != nil {
			return nil, err
		}
		if d.LastSeen, err = parseTimestamp(lastSeen); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetLatestReadings(ctx context.Context, deviceID string, limit int) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()

	var out []types.Reading
	for rows.Next() {
		var (
			rec types.Reading
			ts  string
		)
		if err := rows.Scan(&rec.DeviceID, &rec.PayloadID, &rec.Slot, &ts, &rec.HeatIndexC, &rec.HumidityPct, &rec.PayloadHex); err != nil {
			return nil, err
		}
		if rec.ReceivedAt, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, ts)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", ts, err, err2)
		}
	}
	return t, nil
}
