package resolver

import (
	"context"
	"sync"
)

// Cached remembers successful lookups. When full, the oldest entry is
// evicted. Failures are never cached.
type Cached struct {
	next Resolver
	size int

	mu    sync.Mutex
	names map[string]string
	order []string
}

func NewCached(next Resolver, size int) *Cached {
	return &Cached{
		next:  next,
		size:  size,
		names: make(map[string]string, size),
	}
}

func (c *Cached) Resolve(ctx context.Context, ip string) (string, error) {
	c.mu.Lock()
	name, ok := c.names[ip]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	name, err := c.next.Resolve(ctx, ip)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.names[ip]; !ok {
		if len(c.order) >= c.size {
			delete(c.names, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, ip)
	}
	c.names[ip] = name
	return name, nil
}

// Len returns the number of cached names.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}
