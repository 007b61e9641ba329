// Package probe хранит статически сконфигурированный флот probe-ов и
// агрегирует их состояние здоровья.
package probe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"scanhub/internal/gmp"
	"scanhub/pkg/apperror"
	"scanhub/pkg/cache"
	"scanhub/pkg/config"
	"scanhub/pkg/logger"
)

// Registry хранит сконфигурированные probe-ы; неизменяем после запуска.
type Registry struct {
	names   []string // сохраняет порядок конфигурации для стабильного tie-break
	adapter map[string]gmp.Adapter
}

// NewRegistry строит реестр из статического списка конфигураций probe-ов.
// resolveCache передаётся каждому adapter-у для мемоизации разрешения
// get_scan_configs/get_scanners имя->ID; nil отключает кэширование.
func NewRegistry(probes []config.ProbeConfig, resolveCache cache.Cache) *Registry {
	r := &Registry{adapter: make(map[string]gmp.Adapter, len(probes))}
	for _, p := range probes {
		r.names = append(r.names, p.Name)
		r.adapter[p.Name] = gmp.NewTLSAdapter(p, resolveCache)
	}
	return r
}

// Names возвращает имена probe-ов в порядке конфигурации.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// GetClient возвращает GMP-адаптер выбранного probe-а.
func (r *Registry) GetClient(name string) (gmp.Adapter, error) {
	adapter, ok := r.adapter[name]
	if !ok {
		return nil, apperror.ErrProbeNotFound
	}
	return adapter, nil
}

// Health — статус пары proba -> "connected"|сообщение об ошибке.
type Health struct {
	Overall string            `json:"overall"` // healthy | degraded
	Probes  map[string]string `json:"probes"`
}

// Health выполняет дешёвый GMP-вызов (get_scanners) на каждый сконфигурированный
// probe и агрегирует результат.
func (r *Registry) Health(ctx context.Context) Health {
	result := Health{Probes: make(map[string]string, len(r.names))}

	var mu sync.Mutex
	var wg sync.WaitGroup
	degraded := false

	for _, name := range sortedCopy(r.names) {
		name := name
		adapter := r.adapter[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "connected"
			if err := probeOnce(ctx, adapter); err != nil {
				status = err.Error()
			}
			mu.Lock()
			result.Probes[name] = status
			if status != "connected" {
				degraded = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if degraded {
		result.Overall = "degraded"
	} else {
		result.Overall = "healthy"
	}
	return result
}

func probeOnce(ctx context.Context, adapter gmp.Adapter) error {
	session, err := adapter.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Log.Warn("probe health: session close failed", "error", cerr)
		}
	}()

	if _, err := session.GetScanners(ctx); err != nil {
		return fmt.Errorf("get_scanners failed: %w", err)
	}
	return nil
}

func sortedCopy(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}
