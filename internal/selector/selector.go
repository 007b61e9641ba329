// Package selector выбирает probe для нового скана: явное имя в приоритете,
// иначе — минимальная активная загрузка со стабильным tie-break по порядку
// конфигурации.
package selector

import (
	"context"

	"scanhub/pkg/apperror"
)

// Registry — подмножество probe.Registry, нужное селектору.
type Registry interface {
	Names() []string
}

// Store — подмножество store.Store, нужное селектору.
type Store interface {
	CountActivePerProbe(ctx context.Context) (map[string]int, error)
}

// Selector выбирает probe по явному имени или по минимальной загрузке.
type Selector struct {
	registry Registry
	store    Store
}

// New создаёт селектор поверх реестра probe-ов и хранилища.
func New(registry Registry, store Store) *Selector {
	return &Selector{registry: registry, store: store}
}

// Select возвращает имя probe-а. Если explicitName непусто, оно используется
// при условии регистрации (иначе — UnknownProbe). Иначе выбирается probe с
// минимальным активным счётчиком; при равенстве побеждает тот, что идёт
// раньше в порядке конфигурации.
func (s *Selector) Select(ctx context.Context, explicitName string) (string, error) {
	names := s.registry.Names()
	if len(names) == 0 {
		return "", apperror.New(apperror.CodeNotFound, "no probes available")
	}

	if explicitName != "" {
		for _, n := range names {
			if n == explicitName {
				return explicitName, nil
			}
		}
		return "", apperror.New(apperror.CodeValidationError, "unknown probe").WithField("probe_name").WithDetails("probe_name", explicitName)
	}

	counts, err := s.store.CountActivePerProbe(ctx)
	if err != nil {
		return "", err
	}

	best := names[0]
	bestCount := counts[best]
	for _, n := range names[1:] {
		if c := counts[n]; c < bestCount {
			best, bestCount = n, c
		}
	}
	return best, nil
}
