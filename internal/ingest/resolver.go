package ingest

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/polingest/internal/domain"
)

// lookups maps natural keys to persisted records. Each run allocates its own.
type lookups struct {
	agents     map[string]domain.Agent
	categories map[string]domain.Category
	carriers   map[string]domain.Carrier
	users      map[string]domain.User
	accounts   map[domain.AccountKey]domain.Account
}

// pending holds the records the resolver found missing, in first-seen order.
type pending struct {
	agents     []domain.Agent
	categories []domain.Category
	carriers   []domain.Carrier
	users      []domain.User
}

func agentName(a domain.Agent) string       { return a.Name }
func categoryName(c domain.Category) string { return c.Name }
func carrierName(c domain.Carrier) string   { return c.Name }
func userEmail(u domain.User) string        { return u.Email }

// resolve looks up every distinct key of the four independent kinds
// concurrently and lists what has to be created.
func (p *Pipeline) resolve(ctx context.Context, cs []candidate, sum *Summary) (*lookups, *pending, error) {
	var (
		lk = &lookups{}
		pd = &pending{}

		agentKeys    = distinct(cs, func(c candidate) string { return c.agent })
		categoryKeys = distinct(cs, func(c candidate) string { return c.category })
		carrierKeys  = distinct(cs, func(c candidate) string { return c.carrier })
		emails       = distinct(cs, func(c candidate) string { return c.email })

		invalidUsers int
	)

	// The first row that references an email supplies the user's attributes.
	firstByEmail := make(map[string]candidate, len(emails))
	for _, c := range cs {
		if _, ok := firstByEmail[c.email]; c.email != "" && !ok {
			firstByEmail[c.email] = c
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lk.agents, pd.agents, _, err = resolveKind(gctx, "agents", agentKeys, p.store.FindAgents, agentName,
			func(name string) (domain.Agent, bool) { return domain.Agent{ID: uuid.New(), Name: name}, true })
		return err
	})
	g.Go(func() (err error) {
		lk.categories, pd.categories, _, err = resolveKind(gctx, "categories", categoryKeys, p.store.FindCategories, categoryName,
			func(name string) (domain.Category, bool) { return domain.Category{ID: uuid.New(), Name: name}, true })
		return err
	})
	g.Go(func() (err error) {
		lk.carriers, pd.carriers, _, err = resolveKind(gctx, "carriers", carrierKeys, p.store.FindCarriers, carrierName,
			func(name string) (domain.Carrier, bool) { return domain.Carrier{ID: uuid.New(), Name: name}, true })
		return err
	})
	g.Go(func() (err error) {
		lk.users, pd.users, invalidUsers, err = resolveKind(gctx, "users", emails, p.store.FindUsers, userEmail,
			func(email string) (domain.User, bool) {
				c := firstByEmail[email]
				if c.user == nil {
					p.logger.Verbose("Row %d: user %s not created: %s", c.index+1, email, c.userErr)
					return domain.User{}, false
				}
				u := *c.user
				u.ID = uuid.New()
				return u, true
			})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sum.Agents.Existing = len(lk.agents)
	sum.Categories.Existing = len(lk.categories)
	sum.Carriers.Existing = len(lk.carriers)
	sum.Users.Existing = len(lk.users)
	sum.Users.Invalid = invalidUsers

	p.logger.Verbose("Resolved: %d agents, %d categories, %d carriers, %d users already exist; %d, %d, %d, %d to create",
		len(lk.agents), len(lk.categories), len(lk.carriers), len(lk.users),
		len(pd.agents), len(pd.categories), len(pd.carriers), len(pd.users))
	return lk, pd, nil
}

// resolveKind fetches the persisted records for keys and builds a new record
// for every key that is absent. build reports false for a key whose record
// cannot be built; those are counted as invalid.
func resolveKind[T any](
	ctx context.Context,
	kind string,
	keys []string,
	find func(context.Context, []string) ([]T, error),
	key func(T) string,
	build func(string) (T, bool),
) (map[string]T, []T, int, error) {
	found := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return found, nil, 0, nil
	}

	records, err := find(ctx, keys)
	if err != nil {
		return nil, nil, 0, storeError("find "+kind, err)
	}
	for _, r := range records {
		found[key(r)] = r
	}

	var create []T
	invalid := 0
	for _, k := range keys {
		if _, ok := found[k]; ok {
			continue
		}
		item, ok := build(k)
		if !ok {
			invalid++
			continue
		}
		create = append(create, item)
	}
	return found, create, invalid, nil
}
