package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
)

// DeviceIdentity hands out the durable, non-secret device correlation id.
type DeviceIdentity struct {
	store  model.Store
	logger *logger.Logger
}

func NewDeviceIdentity(store model.Store, logger *logger.Logger) *DeviceIdentity {
	return &DeviceIdentity{store: store, logger: logger}
}

// ID returns the stored device id, generating and persisting one on first use
// or when the stored value is not a UUID.
func (d *DeviceIdentity) ID(ctx context.Context) (string, error) {
	raw, ok, err := d.store.Get(ctx, model.ScopeDurable, model.KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	if ok {
		if _, err := uuid.Parse(raw); err == nil {
			return raw, nil
		}
		d.logger.Warn("Device: stored id is malformed, regenerating")
	}

	id := uuid.NewString()
	if err := d.store.Set(ctx, model.ScopeDurable, model.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	d.logger.Debug("Device: generated new id", "device_id", id)
	return id, nil
}
