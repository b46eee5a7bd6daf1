package observability

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

var registry = struct {
	sync.RWMutex
	byName map[string]Observer
}{
	byName: map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	},
}

// GetObserver resolves an observer name from a configuration file. A
// comma-separated list such as "slog,audit" resolves to a Tee of each
// named observer. "noop" and "slog" are always registered.
func GetObserver(name string) (Observer, error) {
	registry.RLock()
	defer registry.RUnlock()

	var found []Observer
	for part := range strings.SplitSeq(name, ",") {
		part = strings.TrimSpace(part)
		obs, ok := registry.byName[part]
		if !ok {
			return nil, fmt.Errorf("unknown observer: %q (registered: %s)",
				part, strings.Join(slices.Sorted(maps.Keys(registry.byName)), ", "))
		}
		found = append(found, obs)
	}
	return Tee(found...), nil
}

// RegisterObserver adds or replaces a named observer.
func RegisterObserver(name string, observer Observer) {
	registry.Lock()
	defer registry.Unlock()

	registry.byName[name] = observer
}

// UseSlog points the "slog" observer at logger.
func UseSlog(logger *slog.Logger) {
	RegisterObserver("slog", NewSlogObserver(logger))
}
