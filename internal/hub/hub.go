// Package hub собирает воедино хранилище, реестр probe-ов, селектор,
// движок жизненного цикла и фоновые циклы в единое явное значение — замена
// глобального изменяемого состояния исходных источников (spec §9).
package hub

import (
	"context"
	gosync "sync"

	"scanhub/internal/callback"
	"scanhub/internal/lifecycle"
	"scanhub/internal/probe"
	"scanhub/internal/scheduler"
	"scanhub/internal/selector"
	"scanhub/internal/store"
	"scanhub/internal/sync"
	"scanhub/pkg/cache"
	"scanhub/pkg/config"
	"scanhub/pkg/database"
	"scanhub/pkg/logger"
)

// Hub объединяет компоненты ядра Scan Hub и управляет их жизненным циклом.
type Hub struct {
	Store     store.Store
	Registry  *probe.Registry
	Selector  *selector.Selector
	Engine    *lifecycle.Engine
	Sync      *sync.Sync
	Scheduler *scheduler.Scheduler
	Callback  *callback.Dispatcher
	Cache     cache.Cache

	wg gosync.WaitGroup
}

// New строит Hub, начиная с открытого соединения с базой данных и
// загруженной конфигурации.
func New(db database.DB, cfg *config.Config) *Hub {
	var resolveCache cache.Cache
	if cfg.Cache.Enabled {
		var err error
		resolveCache, err = cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("resolve cache unavailable, falling back to in-memory", "error", err)
			resolveCache = cache.NewMemoryCache(cache.DefaultOptions())
		}
	}

	st := store.New(db)
	registry := probe.NewRegistry(cfg.Probes, resolveCache)
	sel := selector.New(registry, st)
	cb := callback.New(st, cfg.Callback, cfg.Retry)

	h := &Hub{
		Store:    st,
		Registry: registry,
		Selector: sel,
		Callback: cb,
		Cache:    resolveCache,
	}

	h.Engine = lifecycle.New(st, registry, sel, cfg.Scan, h.onScanComplete)
	h.Sync = sync.New(st, cfg.Source, cfg.Retry)
	h.Scheduler = scheduler.New(st, h.Engine, cfg.Scheduler)

	return h
}

func (h *Hub) onScanComplete(ctx context.Context, scanID string) {
	h.Callback.Dispatch(ctx, scanID)
}

// Run запускает фоновые циклы (синхронизация каталога и планировщик) и
// блокируется до отмены контекста, после чего дожидается их завершения.
func (h *Hub) Run(ctx context.Context) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.Sync.Run(ctx)
	}()
	go func() {
		defer h.wg.Done()
		h.Scheduler.Run(ctx)
	}()

	<-ctx.Done()
	h.wg.Wait()
}
