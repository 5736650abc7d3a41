package ingest

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/polingest/internal/domain"
	"github.com/vvka-141/polingest/pkg/polingest"
)

// write inserts everything resolve found missing. It must only run once
// resolve has returned: each insert merges into the lookup of its kind.
func (p *Pipeline) write(ctx context.Context, lk *lookups, pd *pending, sum *Summary) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeKind(gctx, p.logger, "agents", pd.agents, agentName,
			p.store.InsertAgents, p.store.FindAgents, lk.agents, &sum.Agents)
	})
	g.Go(func() error {
		return writeKind(gctx, p.logger, "categories", pd.categories, categoryName,
			p.store.InsertCategories, p.store.FindCategories, lk.categories, &sum.Categories)
	})
	g.Go(func() error {
		return writeKind(gctx, p.logger, "carriers", pd.carriers, carrierName,
			p.store.InsertCarriers, p.store.FindCarriers, lk.carriers, &sum.Carriers)
	})
	g.Go(func() error {
		return writeKind(gctx, p.logger, "users", pd.users, userEmail,
			p.store.InsertUsers, p.store.FindUsers, lk.users, &sum.Users)
	})
	return g.Wait()
}

// writeKind inserts items and merges the result into lookup. Items another
// writer created first are re-fetched so their keys resolve to the record
// that won.
func writeKind[T any](
	ctx context.Context,
	logger polingest.Logger,
	kind string,
	items []T,
	key func(T) string,
	insert func(context.Context, []T) (domain.InsertResult[T], error),
	find func(context.Context, []string) ([]T, error),
	lookup map[string]T,
	counts *KindCounts,
) error {
	if len(items) == 0 {
		return nil
	}

	res, err := insert(ctx, items)
	if err != nil {
		return storeError("insert "+kind, err)
	}
	created := res.Created()
	for _, it := range created {
		lookup[key(it)] = it
	}
	counts.Created = len(created)

	dups := res.Duplicates()
	if len(dups) == 0 {
		return nil
	}
	counts.Duplicates = len(dups)

	keys := make([]string, len(dups))
	for i, d := range dups {
		keys[i] = key(d)
	}
	logger.Verbose("%d %s created concurrently by another run: %s", len(dups), kind, strings.Join(keys, ", "))

	winners, err := find(ctx, keys)
	if err != nil {
		return storeError("find "+kind, err)
	}
	for _, w := range winners {
		lookup[key(w)] = w
	}
	return nil
}
