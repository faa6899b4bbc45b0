package asset

import (
	"sort"
	"sync"
)

// ChangeFunc is called after an asset is added or updated.
type ChangeFunc func(a *Asset)

// Library is the in-memory asset registry the engine works from.
// The catalog persists it across runs; at runtime every lookup, the
// preview strategy choice included, goes through here.
type Library struct {
	mu       sync.RWMutex
	assets   map[string]*Asset
	onChange []ChangeFunc
}

func NewLibrary() *Library {
	return &Library{
		assets: make(map[string]*Asset),
	}
}

// OnChange registers a callback fired after Put and status updates,
// outside the lock.
func (l *Library) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

// Put inserts or replaces an asset. The stored value is a copy, so
// callers cannot mutate library state behind the lock.
func (l *Library) Put(a *Asset) {
	if a == nil || a.ID == "" {
		return
	}
	cp := *a
	l.mu.Lock()
	l.assets[cp.ID] = &cp
	fns := l.onChange
	l.mu.Unlock()

	for _, fn := range fns {
		fn(&cp)
	}
}

// Get returns a copy of the asset, or nil when unknown.
func (l *Library) Get(id string) *Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// List returns all assets sorted by name.
func (l *Library) List() []*Asset {
	l.mu.RLock()
	out := make([]*Asset, 0, len(l.assets))
	for _, a := range l.assets {
		cp := *a
		out = append(out, &cp)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.assets)
}

// SetProxyStatus records a proxy lifecycle transition. The proxy URI
// is only attached on ready.
func (l *Library) SetProxyStatus(id string, status ProxyStatus, proxyURI string) *Asset {
	l.mu.Lock()
	a, ok := l.assets[id]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	a.ProxyStatus = status
	if status == ProxyReady {
		a.ProxyURI = proxyURI
	}
	cp := *a
	fns := l.onChange
	l.mu.Unlock()

	for _, fn := range fns {
		fn(&cp)
	}
	return &cp
}

// AllProxiesReady reports whether every asset in ids can be decoded
// straight from a proxy. Unknown ids and assets still waiting on a
// proxy count as not ready; images and audio never block.
func (l *Library) AllProxiesReady(ids []string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range ids {
		a, ok := l.assets[id]
		if !ok {
			return false
		}
		if a.Kind != KindVideo {
			continue
		}
		if a.ProxyStatus != ProxyReady || a.ProxyURI == "" {
			return false
		}
	}
	return true
}
