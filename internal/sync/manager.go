// Package sync drives delivery of queued price observations and maintenance
// of the offline shop cache.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/open2log/open2log-go/internal/model"
	"github.com/open2log/open2log-go/internal/netmon"
	"github.com/open2log/open2log-go/internal/store"
)

var (
	// ErrNoNetwork is returned by ForceSync and DownloadOfflineData when the
	// device is unreachable.
	ErrNoNetwork = errors.New("no network connection")

	// ErrSyncInProgress is returned by ForceSync while a pass is running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// State is a snapshot of the sync engine, published to subscribers on every
// transition.
type State struct {
	Online       bool       `json:"online"`
	Wifi         bool       `json:"wifi"`
	Syncing      bool       `json:"syncing"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	Progress     float64    `json:"progress"`
	LastError    string     `json:"last_error,omitempty"`
	PendingCount int        `json:"pending_count"`
	StalledCount int        `json:"stalled_count"`
}

// StateCallback observes sync state transitions. Callbacks run on the
// goroutine driving the transition and should return quickly.
type StateCallback func(State)

// PriceAPI is the slice of the remote service the sync engine needs.
type PriceAPI interface {
	SubmitPriceRecord(ctx context.Context, rec model.PriceRecord) error
	NearbyShops(ctx context.Context, lat, lon, radiusKm float64) ([]model.Shop, error)
}

// ImageUploader transfers one image and returns its public reference.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte, kind model.ImageKind) (string, error)
}

// Config holds sync policy settings.
type Config struct {
	// WifiOnly suppresses automatic syncs on non-wifi interfaces. ForceSync
	// ignores it.
	WifiOnly bool

	// CacheTTL is the shop cache freshness window. Zero means the store
	// default (7 days).
	CacheTTL time.Duration
}

// Manager owns the sync state machine: idle until a reachability transition
// or an explicit request starts a pass, then back to idle when the pass
// completes. At most one pass runs at a time; per-item failures never abort
// a pass.
type Manager struct {
	cfg     Config
	uploads *store.PendingUploadStore
	shops   *store.ShopCacheStore
	client  PriceAPI
	images  ImageUploader
	logger  *slog.Logger

	mu        sync.RWMutex
	state     State
	callbacks []StateCallback
}

// NewManager creates a sync manager over the given stores and clients.
func NewManager(cfg Config, uploads *store.PendingUploadStore, shops *store.ShopCacheStore, client PriceAPI, images ImageUploader, logger *slog.Logger) *Manager {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = store.DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:     cfg,
		uploads: uploads,
		shops:   shops,
		client:  client,
		images:  images,
		logger:  logger,
	}
	m.refreshCounts()
	return m
}

// Subscribe registers a state observer.
func (m *Manager) Subscribe(cb StateCallback) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.mu.Unlock()
}

// State returns the current sync state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// HandleConnectivity is the reachability-monitor callback. It only updates
// connectivity state and, on an offline-to-online edge, requests an automatic
// sync; it never blocks on I/O itself.
func (m *Manager) HandleConnectivity(st netmon.Status) {
	m.mu.Lock()
	wasOnline := m.state.Online
	changed := m.state.Online != st.Online || m.state.Wifi != st.Wifi
	m.state.Online = st.Online
	m.state.Wifi = st.Wifi
	m.mu.Unlock()

	if changed {
		m.notify()
	}
	if !wasOnline && st.Online {
		m.AttemptSync()
	}
}

// AttemptSync starts a background pass if one is allowed: the device must be
// reachable, no pass may be running, and the wifi-only policy must permit the
// current interface. Disallowed attempts are no-ops.
func (m *Manager) AttemptSync() {
	m.mu.Lock()
	allowed := m.state.Online && !m.state.Syncing && (!m.cfg.WifiOnly || m.state.Wifi)
	if allowed {
		m.beginPassLocked()
	}
	m.mu.Unlock()

	if !allowed {
		return
	}
	m.notify()
	go m.runPass(context.Background())
}

// ForceSync runs a pass synchronously, bypassing the wifi-only policy. It
// fails immediately when unreachable or when a pass is already running.
func (m *Manager) ForceSync(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.Online {
		m.mu.Unlock()
		return ErrNoNetwork
	}
	if m.state.Syncing {
		m.mu.Unlock()
		return ErrSyncInProgress
	}
	m.beginPassLocked()
	m.mu.Unlock()

	m.notify()
	m.runPass(ctx)
	return nil
}

func (m *Manager) beginPassLocked() {
	m.state.Syncing = true
	m.state.Progress = 0
	m.state.LastError = ""
}

// runPass executes one sync pass over the current retryable snapshot. It
// always returns the engine to idle; per-item errors are recorded on the
// items, not surfaced.
func (m *Manager) runPass(ctx context.Context) {
	defer func() {
		pending, stalled := m.counts()
		m.mu.Lock()
		m.state.Syncing = false
		m.state.Progress = 1
		m.state.PendingCount = pending
		m.state.StalledCount = stalled
		m.mu.Unlock()
		m.notify()
	}()

	items, err := m.uploads.ListRetryable()
	if err != nil {
		m.logger.Error("list retryable uploads", "error", err)
		m.setLastError(err)
		return
	}
	if len(items) == 0 {
		m.setLastSync()
		return
	}

	m.logger.Info("sync pass started", "items", len(items))
	total := len(items)
	for i, item := range items {
		if err := m.syncItem(ctx, item); err != nil {
			m.logger.Warn("sync item failed", "id", item.ID, "attempts", item.UploadAttempts+1, "error", err)
			if ferr := m.uploads.MarkFailed(item, err.Error()); ferr != nil {
				m.logger.Error("record item failure", "id", item.ID, "error", ferr)
			}
		}
		m.setProgress(float64(i+1) / float64(total))
	}

	if err := m.uploads.ClearCompleted(); err != nil {
		m.logger.Error("clear completed uploads", "error", err)
	}
	m.setLastSync()
	m.logger.Info("sync pass finished", "items", total)
}

// syncItem drives the multi-stage upload for one item: every unset attachment
// first, then the flattened metadata submission. Attachment progress is
// persisted as it happens, so a failure here leaves the item resumable.
func (m *Manager) syncItem(ctx context.Context, item *model.PendingUpload) error {
	for _, att := range item.Attachments() {
		if att.LocalPath == nil || *att.LocalPath == "" || att.Uploaded {
			continue
		}

		data, err := os.ReadFile(*att.LocalPath)
		if err != nil {
			return fmt.Errorf("read %s image: %w", att.Kind, err)
		}
		publicURL, err := m.images.Upload(ctx, data, att.Kind)
		if err != nil {
			return fmt.Errorf("upload %s image: %w", att.Kind, err)
		}
		if err := m.uploads.MarkAttachmentUploaded(item.ID, att.Kind, publicURL); err != nil {
			return err
		}
		item.SetAttachmentUploaded(att.Kind, publicURL)
	}

	if !item.DataUploaded {
		rec := model.PriceRecord{
			EAN:             item.EAN,
			ProductName:     item.ProductName,
			PriceCents:      item.PriceCents,
			ShopGersID:      item.ShopGersID,
			ScannedAt:       item.ScannedAt,
			BarcodeImageURL: item.BarcodeImageURL,
			PriceImageURL:   item.PriceImageURL,
			ProductImageURL: item.ProductImageURL,
		}
		if err := m.client.SubmitPriceRecord(ctx, rec); err != nil {
			return fmt.Errorf("submit price: %w", err)
		}
		if err := m.uploads.MarkComplete(item); err != nil {
			return err
		}
	}
	return nil
}

// DownloadOfflineData fetches shops around the given center and refreshes the
// offline cache. It fails with ErrNoNetwork when unreachable.
func (m *Manager) DownloadOfflineData(ctx context.Context, lat, lon, radiusKm float64) error {
	if !m.State().Online {
		return ErrNoNetwork
	}

	shops, err := m.client.NearbyShops(ctx, lat, lon, radiusKm)
	if err != nil {
		return fmt.Errorf("fetch nearby shops: %w", err)
	}
	if err := m.shops.UpsertMany(shops, m.cfg.CacheTTL); err != nil {
		return fmt.Errorf("cache shops: %w", err)
	}

	m.logger.Info("offline data downloaded", "shops", len(shops))
	return nil
}

// ClearOfflineData empties the shop cache. Pending uploads are untouched.
func (m *Manager) ClearOfflineData() error {
	return m.shops.ClearAll()
}

func (m *Manager) setProgress(p float64) {
	m.mu.Lock()
	m.state.Progress = p
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.state.LastError = err.Error()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setLastSync() {
	now := time.Now().UTC()
	m.mu.Lock()
	m.state.LastSyncAt = &now
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) counts() (pending, stalled int) {
	pending, err := m.uploads.CountPending()
	if err != nil {
		m.logger.Error("count pending uploads", "error", err)
	}
	stalled, err = m.uploads.CountStalled()
	if err != nil {
		m.logger.Error("count stalled uploads", "error", err)
	}
	return pending, stalled
}

func (m *Manager) refreshCounts() {
	pending, stalled := m.counts()
	m.mu.Lock()
	m.state.PendingCount = pending
	m.state.StalledCount = stalled
	m.mu.Unlock()
}

// notify delivers a state snapshot to all subscribers outside the lock.
func (m *Manager) notify() {
	m.mu.RLock()
	st := m.state
	cbs := make([]StateCallback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.RUnlock()

	for _, cb := range cbs {
		cb(st)
	}
}
