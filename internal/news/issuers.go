package news

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"moex-bonds/internal/provider/moex"
)

// IssuerSource finds the emitent title of a security.
type IssuerSource interface {
	SearchIssuer(ctx context.Context, query string) (string, error)
}

// Resolver maps security ids to issuer names, caching answers.
type Resolver struct {
	src    IssuerSource
	cache  *cache.Cache
	logger *slog.Logger
}

// NewResolver creates a Resolver whose answers live for ttl.
func NewResolver(src IssuerSource, ttl time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{src: src, cache: cache.New(ttl, 2*ttl), logger: logger}
}

// Resolve returns the issuer name of secID.
func (r *Resolver) Resolve(ctx context.Context, secID string) (string, error) {
	if v, ok := r.cache.Get(secID); ok {
		return v.(string), nil
	}
	title, err := r.src.SearchIssuer(ctx, secID)
	if err != nil {
		return "", err
	}
	name := moex.IssuerName(title)
	r.cache.Set(secID, name, cache.DefaultExpiration)
	r.logger.Info("issuer resolved", "secid", secID, "title", title, "issuer", name)
	return name, nil
}

// ResolveAll resolves every id and returns distinct issuer names in first-seen order.
// Ids that cannot be resolved are logged and skipped.
func (r *Resolver) ResolveAll(ctx context.Context, secIDs []string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, id := range secIDs {
		name, err := r.Resolve(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return names, err
			}
			r.logger.Warn("issuer not resolved", "secid", id, "error", err)
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}
