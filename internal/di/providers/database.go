package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pbtracker/pbtracker-server/internal/config"
	"github.com/pbtracker/pbtracker-server/internal/logger"
	"github.com/pbtracker/pbtracker-server/internal/sse"
	"github.com/pbtracker/pbtracker-server/internal/store"
	"github.com/pbtracker/pbtracker-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the database and applies pending migrations.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(context.Background(), cfg.Storage.DatabasePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	return &StoreHandle{Store: db}, nil
}

// ViewCacheHandle wraps the derived view cache with shutdown capability.
type ViewCacheHandle struct {
	*store.ViewCache
}

// Shutdown implements do.Shutdownable.
func (h *ViewCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideViewCache opens the badger cache of runner views.
func ProvideViewCache(i do.Injector) (*ViewCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cache, err := store.OpenViewCache(cfg.Storage.CachePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("View cache opened", "path", cfg.Storage.CachePath())

	return &ViewCacheHandle{ViewCache: cache}, nil
}
