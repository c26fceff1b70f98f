// Package catalog resolves entity names to stable node ids for the
// duration of one indexing run.
package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/graphweave/graphrag/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// ErrEmptyName is returned when asked to resolve a blank name.
var ErrEmptyName = errors.New("entity name is empty")

// NodeUpserter is the store capability the catalog needs.
type NodeUpserter interface {
	UpsertNode(ctx context.Context, name, typ string) (int64, error)
}

// Catalog maps entity names to node ids. Names are matched exactly, case
// sensitive. The first type seen for a name during the run is the one
// written; later types for the same name are ignored. Concurrent lookups of
// an unseen name collapse into a single store upsert.
type Catalog struct {
	store NodeUpserter

	mu    sync.RWMutex
	ids   map[string]int64
	types map[string]string

	group singleflight.Group
}

func New(store NodeUpserter) *Catalog {
	return &Catalog{
		store: store,
		ids:   map[string]int64{},
		types: map[string]string{},
	}
}

// Resolve returns the node id for name, creating the node on first sight.
func (c *Catalog) Resolve(ctx context.Context, name, typ string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, ErrEmptyName
	}

	c.mu.RLock()
	id, ok := c.ids[name]
	if ok {
		seen := c.types[name]
		c.mu.RUnlock()
		if typ != "" && seen != typ {
			logger.Debug("[Catalog] Ignoring later type for entity", "name", name, "type", typ, "kept", seen)
		}
		return id, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.RLock()
		if id, ok := c.ids[name]; ok {
			c.mu.RUnlock()
			return id, nil
		}
		c.mu.RUnlock()

		id, err := c.store.UpsertNode(ctx, name, typ)
		if err != nil {
			return int64(0), err
		}

		c.mu.Lock()
		c.ids[name] = id
		c.types[name] = typ
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Len returns the number of names resolved so far.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}
