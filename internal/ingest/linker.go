package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vvka-141/polingest/internal/domain"
)

// stagedAccount keeps the row that first referenced the account.
type stagedAccount struct {
	index   int
	account domain.Account
}

// linkAccounts stages one account per distinct (name, user) pair and inserts
// them. Staging is sequential; lk.accounts holds persisted records when it
// returns.
func (p *Pipeline) linkAccounts(ctx context.Context, cs []candidate, lk *lookups, sum *Summary) error {
	userIDs := make([]uuid.UUID, 0, len(lk.users))
	for _, u := range lk.users {
		userIDs = append(userIDs, u.ID)
	}

	lk.accounts = make(map[domain.AccountKey]domain.Account)
	if len(userIDs) > 0 {
		existing, err := p.store.FindAccounts(ctx, userIDs)
		if err != nil {
			return storeError("find accounts", err)
		}
		for _, a := range existing {
			lk.accounts[a.Key()] = a
		}
	}

	var staged []stagedAccount
	seen := make(map[domain.AccountKey]bool)
	for _, c := range cs {
		if c.account == "" {
			continue
		}
		u, ok := lk.users[c.email]
		if !ok {
			continue
		}
		key := domain.AccountKey{Name: c.account, UserID: u.ID}
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, ok := lk.accounts[key]; ok {
			sum.Accounts.Existing++
			continue
		}
		a := domain.Account{ID: uuid.New(), Name: key.Name, UserID: key.UserID}
		lk.accounts[key] = a
		staged = append(staged, stagedAccount{index: c.index, account: a})
	}
	if len(staged) == 0 {
		return nil
	}

	items := make([]domain.Account, len(staged))
	rowOf := make(map[domain.AccountKey]int, len(staged))
	for i, s := range staged {
		items[i] = s.account
		rowOf[s.account.Key()] = s.index
	}
	p.logger.Verbose("Staged %d accounts", len(items))

	res, err := p.store.InsertAccounts(ctx, items)
	if err != nil {
		return storeError("insert accounts", err)
	}
	sum.Accounts.Created = len(res.Created())

	dups := res.Duplicates()
	if len(dups) == 0 {
		return nil
	}
	sum.Accounts.Duplicates = len(dups)
	return p.reconcileAccounts(ctx, dups, rowOf, lk)
}

// reconcileAccounts replaces staged accounts another run persisted first with
// the stored records. An account that still cannot be found is dropped from
// the lookup so its rows count as unresolved.
func (p *Pipeline) reconcileAccounts(ctx context.Context, dups []domain.Account, rowOf map[domain.AccountKey]int, lk *lookups) error {
	userIDs := make([]uuid.UUID, 0, len(dups))
	seen := make(map[uuid.UUID]bool)
	for _, d := range dups {
		delete(lk.accounts, d.Key())
		if !seen[d.UserID] {
			seen[d.UserID] = true
			userIDs = append(userIDs, d.UserID)
		}
	}

	stored, err := p.store.FindAccounts(ctx, userIDs)
	if err != nil {
		return storeError("find accounts", err)
	}
	byKey := make(map[domain.AccountKey]domain.Account, len(stored))
	for _, a := range stored {
		byKey[a.Key()] = a
	}
	for _, d := range dups {
		if a, ok := byKey[d.Key()]; ok {
			lk.accounts[d.Key()] = a
			p.logger.Verbose("Row %d: account %q created concurrently by another run", rowOf[d.Key()]+1, d.Name)
		}
	}
	return nil
}

// references resolves a row's five policy references. It returns the names
// of those that did not resolve.
func (lk *lookups) references(c candidate) (domain.Policy, []string) {
	var (
		pol     domain.Policy
		missing []string
	)
	if v, ok := lk.categories[c.category]; ok {
		pol.CategoryID = v.ID
	} else {
		missing = append(missing, "category")
	}
	if v, ok := lk.carriers[c.carrier]; ok {
		pol.CarrierID = v.ID
	} else {
		missing = append(missing, "carrier")
	}
	if v, ok := lk.agents[c.agent]; ok {
		pol.AgentID = v.ID
	} else {
		missing = append(missing, "agent")
	}
	u, userOK := lk.users[c.email]
	if userOK {
		pol.UserID = u.ID
	} else {
		missing = append(missing, "user")
	}
	if a, ok := lk.accounts[domain.AccountKey{Name: c.account, UserID: u.ID}]; userOK && ok {
		pol.AccountID = a.ID
	} else {
		missing = append(missing, "account")
	}
	return pol, missing
}

// linkPolicies stages one policy per new policy number and inserts them.
// Each row is checked in order: number present, not yet persisted, not yet
// staged, references resolved, start date valid.
func (p *Pipeline) linkPolicies(ctx context.Context, cs []candidate, lk *lookups, sum *Summary) error {
	numbers := distinct(cs, func(c candidate) string { return c.policyNumber })
	persisted := make(map[string]bool, len(numbers))
	if len(numbers) > 0 {
		found, err := p.store.FindPolicyNumbers(ctx, numbers)
		if err != nil {
			return storeError("find policies", err)
		}
		for _, n := range found {
			persisted[n] = true
		}
	}

	staged := make(map[string]bool)
	var policies []domain.Policy
	for _, c := range cs {
		switch {
		case c.policyNumber == "":
			sum.skip(c, SkipInvalid, "missing policy_number")
			continue
		case persisted[c.policyNumber]:
			sum.skip(c, SkipExisting, "")
			continue
		case staged[c.policyNumber]:
			sum.skip(c, SkipDuplicate, "")
			continue
		}

		pol, missing := lk.references(c)
		if len(missing) > 0 {
			sum.skip(c, SkipUnresolved, "", missing...)
			continue
		}
		if c.start == nil {
			detail := "missing policy_start_date"
			if c.startRaw != "" {
				detail = fmt.Sprintf("unrecognized policy_start_date %q", c.startRaw)
			}
			sum.skip(c, SkipInvalid, detail)
			continue
		}

		pol.ID = uuid.New()
		pol.Number = c.policyNumber
		pol.StartDate = *c.start
		pol.EndDate = c.end
		staged[c.policyNumber] = true
		policies = append(policies, pol)
	}
	sum.Policies.Staged = len(policies)
	p.logger.Verbose("Staged %d policies, skipped %d rows", len(policies), sum.Policies.Skipped())
	if len(policies) == 0 {
		return nil
	}

	res, err := p.store.InsertPolicies(ctx, policies)
	if err != nil {
		return storeError("insert policies", err)
	}
	sum.Policies.Created = len(res.Created())
	if dups := res.Duplicates(); len(dups) > 0 {
		sum.Policies.Duplicates = len(dups)
		for _, d := range dups {
			p.logger.Verbose("Policy %s created concurrently by another run", d.Number)
		}
	}
	return nil
}
