package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/vladimiradmaev/tacticmap/internal/domain"
	apperrors "github.com/vladimiradmaev/tacticmap/internal/errors"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
	"github.com/vladimiradmaev/tacticmap/internal/task"
)

// DefaultDeviceName is the glove reported after a simulated pairing
const DefaultDeviceName = "TacticGlove v2.1"

// ErrBleUnavailable is returned when the store reports no Bluetooth adapter
var ErrBleUnavailable = apperrors.New(apperrors.ErrorTypeUnavailable, "BLE_UNAVAILABLE", "Bluetooth is not available")

// BLEScanner drives a fake scan/connect sequence through the telemetry store
type BLEScanner struct {
	store        domain.TelemetryStore
	scanDelay    time.Duration
	connectDelay time.Duration
	deviceName   string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewBLEScanner creates a scanner with the given simulated latencies
func NewBLEScanner(store domain.TelemetryStore, scanDelay, connectDelay time.Duration) *BLEScanner {
	return &BLEScanner{
		store:        store,
		scanDelay:    scanDelay,
		connectDelay: connectDelay,
		deviceName:   DefaultDeviceName,
	}
}

// Connect walks scanning -> connecting -> connected and blocks until done.
// If ctx ends or Disconnect is called midway the status returns to disconnected.
func (b *BLEScanner) Connect(ctx context.Context) error {
	switch b.store.Snapshot().BleStatus {
	case domain.BleUnavailable:
		return ErrBleUnavailable
	case domain.BleConnected:
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = cancel
	b.mu.Unlock()
	defer cancel()

	b.store.SetBleStatus(domain.BleScanning, "")
	logger.Debug("BLE scan started")

	steps := []struct {
		delay time.Duration
		apply func()
	}{
		{b.scanDelay, func() { b.store.SetBleStatus(domain.BleConnecting, "") }},
		{b.connectDelay, func() { b.store.SetBleStatus(domain.BleConnected, b.deviceName) }},
	}
	for _, step := range steps {
		apply := step.apply
		err := task.After(ctx, step.delay, func() { b.applyIfActive(ctx, apply) }).Wait()
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			b.store.SetBleStatus(domain.BleDisconnected, "")
			logger.Info("BLE connection aborted", "error", err)
			return err
		}
	}

	logger.Info("BLE device connected", "device", b.deviceName)
	return nil
}

// applyIfActive runs a connect step unless the attempt was cancelled.
// Holding mu orders it against Disconnect.
func (b *BLEScanner) applyIfActive(ctx context.Context, apply func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	apply()
}

// Disconnect aborts a pending Connect and marks the device disconnected
func (b *BLEScanner) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.store.SetBleStatus(domain.BleDisconnected, "")
}
