// Package worker runs background jobs of the ticketing service.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/pkg/logger"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Start on a running worker
var ErrAlreadyRunning = errors.New("expiry worker already running")

// ExpiryWorkerConfig holds configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// ScanInterval is the time between scans
	ScanInterval time.Duration
	// BatchSize must match the expiry service batch size; a full batch
	// triggers another pass in the same scan
	BatchSize int
	// MaxBatchesPerScan bounds one scan
	MaxBatchesPerScan int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval:      time.Minute,
		BatchSize:         100,
		MaxBatchesPerScan: 10,
	}
}

// ExpiryWorkerStats is a snapshot of the worker's progress
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	TotalScans       int64     `json:"total_scans"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
	LastError        string    `json:"last_error,omitempty"`
}

// ExpiryWorker periodically fails pending registrations whose payment window passed
type ExpiryWorker struct {
	expiry service.ExpiryService
	log    *logger.Logger
	config *ExpiryWorkerConfig

	mu               sync.Mutex
	running          bool
	stop             chan struct{}
	done             chan struct{}
	totalExpired     int64
	totalScans       int64
	lastScanTime     time.Time
	lastExpiredCount int
	lastError        string
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(expiry service.ExpiryService, log *logger.Logger, config *ExpiryWorkerConfig) *ExpiryWorker {
	defaults := DefaultExpiryWorkerConfig()
	if config == nil {
		config = defaults
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxBatchesPerScan <= 0 {
		config.MaxBatchesPerScan = defaults.MaxBatchesPerScan
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ExpiryWorker{
		expiry: expiry,
		log:    log.Named("expiry-worker"),
		config: config,
	}
}

// Start scans immediately and then every ScanInterval until ctx is done or
// Stop is called. It blocks and returns nil on a clean shutdown.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	stop, done := w.stop, w.done
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(done)
	}()

	w.log.Info("expiry worker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		w.scan(ctx)
		select {
		case <-ctx.Done():
			w.log.Info("expiry worker stopped", zap.String("reason", "context done"))
			return nil
		case <-stop:
			w.log.Info("expiry worker stopped", zap.String("reason", "stop requested"))
			return nil
		case <-ticker.C:
		}
	}
}

// Stop asks a running worker to exit and waits for it
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	done := w.done
	w.mu.Unlock()
	<-done
}

// scan drains full batches up to MaxBatchesPerScan
func (w *ExpiryWorker) scan(ctx context.Context) {
	var (
		expired int
		scanErr error
	)
	for i := 0; i < w.config.MaxBatchesPerScan; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := w.expiry.ExpirePending(ctx)
		expired += n
		if err != nil {
			scanErr = err
			break
		}
		if n < w.config.BatchSize {
			break
		}
	}

	w.mu.Lock()
	w.totalScans++
	w.totalExpired += int64(expired)
	w.lastScanTime = time.Now()
	w.lastExpiredCount = expired
	w.lastError = ""
	if scanErr != nil {
		w.lastError = scanErr.Error()
	}
	w.mu.Unlock()

	switch {
	case scanErr != nil && !errors.Is(scanErr, context.Canceled):
		w.log.Error("expiry scan failed", zap.Int("expired", expired), zap.Error(scanErr))
	case expired > 0:
		w.log.Info("expired pending registrations", zap.Int("expired", expired))
	}
}

// GetStats returns a snapshot of the worker's progress
func (w *ExpiryWorker) GetStats() ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		TotalScans:       w.totalScans,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
		LastError:        w.lastError,
	}
}
