package core

import (
	"sort"
	"strings"
	"sync"
)

// PauseRegistry tracks which modules currently reject mutating calls.
type PauseRegistry struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseRegistry seeds the registry from module flags.
func NewPauseRegistry(initial map[string]bool) *PauseRegistry {
	r := &PauseRegistry{paused: make(map[string]bool, len(initial))}
	for module, paused := range initial {
		if paused {
			r.paused[normalizeModule(module)] = true
		}
	}
	return r
}

// IsPaused implements nativecommon.PauseView.
func (r *PauseRegistry) IsPaused(module string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused[normalizeModule(module)]
}

func (r *PauseRegistry) set(module string, paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if paused {
		r.paused[normalizeModule(module)] = true
		return
	}
	delete(r.paused, normalizeModule(module))
}

// Paused lists paused modules in name order.
func (r *PauseRegistry) Paused() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.paused))
	for module := range r.paused {
		out = append(out, module)
	}
	sort.Strings(out)
	return out
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
