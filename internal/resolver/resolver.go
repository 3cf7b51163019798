// Package resolver performs reverse DNS lookups for enrichment.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"firestige.xyz/wiresentry/internal/config"
)

// ErrNotFound means the address has no PTR record.
var ErrNotFound = errors.New("resolver: no name for address")

// Resolver maps an IP address to a host name.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (string, error)
}

// New builds the resolver selected by cfg, wrapped in a cache when
// cfg.CacheSize is positive.
func New(cfg config.DNSConfig) (Resolver, error) {
	var r Resolver
	switch cfg.Resolver {
	case "system", "":
		r = NewSystem(cfg.Timeout)
	case "dns":
		d, err := NewDNS(cfg.Servers, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		r = d
	default:
		return nil, fmt.Errorf("unsupported resolver: %s", cfg.Resolver)
	}

	if cfg.CacheSize > 0 {
		r = NewCached(r, cfg.CacheSize)
	}
	return r, nil
}

// System uses the operating system resolver.
type System struct {
	timeout time.Duration
	r       *net.Resolver
}

func NewSystem(timeout time.Duration) *System {
	return &System{timeout: timeout, r: net.DefaultResolver}
}

func (s *System) Resolve(ctx context.Context, ip string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	names, err := s.r.LookupAddr(ctx, ip)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", ErrNotFound
		}
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	return strings.TrimSuffix(names[0], "."), nil
}
