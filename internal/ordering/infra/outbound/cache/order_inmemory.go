package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	orderingDomain "github.com/davicafu/ordelab/internal/ordering/domain"
)

// cacheItem guarda el valor serializado y su expiración. Guardamos bytes
// para que el comportamiento sea el mismo que con Redis.
type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryOrderCache es el fallback cuando Redis no está disponible:
// misma interfaz, un mapa protegido por RWMutex.
type InMemoryOrderCache struct {
	store      map[string]cacheItem
	mu         sync.RWMutex
	defaultTTL time.Duration
	stopChan   chan struct{}
}

// Verificación estática
var _ orderingDomain.OrderCache = (*InMemoryOrderCache)(nil)

// NewInMemoryOrderCache arranca además la goroutine de limpieza de claves
// expiradas; llamar a Stop al apagar.
func NewInMemoryOrderCache(defaultTTL, cleanupInterval time.Duration) *InMemoryOrderCache {
	c := &InMemoryOrderCache{
		store:      make(map[string]cacheItem),
		defaultTTL: defaultTTL,
		stopChan:   make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval)

	return c
}

func (c *InMemoryOrderCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.store[key]
	if !ok {
		return false, nil // cache miss
	}

	if time.Now().UTC().After(item.expiresAt) {
		return false, nil // expirado, cuenta como miss
	}

	if err := json.Unmarshal(item.value, dest); err != nil {
		return false, err
	}

	return true, nil
}

func (c *InMemoryOrderCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.defaultTTL
	if ttlSecs > 0 {
		ttl = time.Duration(ttlSecs) * time.Second
	}

	c.store[key] = cacheItem{
		value:     data,
		expiresAt: time.Now().UTC().Add(ttl),
	}

	return nil
}

func (c *InMemoryOrderCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.store, key)
	return nil
}

// Stop detiene la goroutine de limpieza.
func (c *InMemoryOrderCache) Stop() {
	close(c.stopChan)
}

func (c *InMemoryOrderCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, item := range c.store {
				if time.Now().UTC().After(item.expiresAt) {
					delete(c.store, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopChan:
			return
		}
	}
}
