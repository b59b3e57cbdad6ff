package memory

import (
	"sync"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

var _ port.PixelRegistry = (*PixelRegistry)(nil)

// PixelRegistry holds the conversion pixels of each store.
type PixelRegistry struct {
	mu     sync.RWMutex
	pixels map[string][]domain.StorePixel
}

// NewPixelRegistry returns an empty registry.
func NewPixelRegistry() *PixelRegistry {
	return &PixelRegistry{pixels: make(map[string][]domain.StorePixel)}
}

// Add registers a pixel.
func (r *PixelRegistry) Add(p domain.StorePixel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pixels[p.StoreID] = append(r.pixels[p.StoreID], p)
}

// PixelsForStore returns the pixels registered for storeID.
func (r *PixelRegistry) PixelsForStore(storeID string) []domain.StorePixel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.StorePixel(nil), r.pixels[storeID]...)
}
