package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/polingest/internal/domain"
	"github.com/vvka-141/polingest/internal/migrations"
	"github.com/vvka-141/polingest/pkg/polingest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = migrations.Up(ctx, s.DB(), polingest.DriverSQLite)
	require.NoError(t, err)
	return s
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/x.db")
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "busy_timeout%285000%29")
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", placeholders(3, 1))
	assert.Equal(t, "(?, ?), (?, ?)", placeholders(2, 2))
}

func TestChunk(t *testing.T) {
	assert.Len(t, chunk([]int{1, 2, 3, 4, 5}, 2), 3)
	assert.Empty(t, chunk([]int{}, 2))
}

func TestInsertAgents_ReportsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.InsertAgents(ctx, []domain.Agent{{ID: uuid.New(), Name: "Alex"}})
	require.NoError(t, err)
	require.Len(t, first.Created(), 1)

	again, err := s.InsertAgents(ctx, []domain.Agent{
		{ID: uuid.New(), Name: "Alex"},
		{ID: uuid.New(), Name: "Sam"},
	})
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, domain.OutcomeDuplicate, again[0].Outcome)
	assert.Equal(t, domain.OutcomeCreated, again[1].Outcome)

	found, err := s.FindAgents(ctx, []string{"Alex", "Sam", "Nobody"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	for _, a := range found {
		if a.Name == "Alex" {
			assert.Equal(t, first[0].Item.ID, a.ID, "duplicate must not replace the stored ID")
		}
	}
}

func TestFind_EmptyKeys(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	agents, err := s.FindAgents(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, agents)

	res, err := s.InsertCarriers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestUsersAndAccounts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	dob := day("1990-04-01")
	u := domain.User{
		ID: uuid.New(), FirstName: "Lura", DOB: &dob, Email: "lura@example.com",
		Gender: domain.GenderFemale, UserType: "active_client",
		Address: domain.Address{Street: "1 Main", City: "Austin", State: "TX", Zip: "78701"},
	}
	res, err := s.InsertUsers(ctx, []domain.User{u})
	require.NoError(t, err)
	require.Len(t, res.Created(), 1)

	users, err := s.FindUsers(ctx, []string{"lura@example.com"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)
	assert.Equal(t, domain.GenderFemale, users[0].Gender)
	require.NotNil(t, users[0].DOB)
	assert.True(t, dob.Equal(*users[0].DOB))
	assert.Equal(t, "Austin", users[0].Address.City)

	other := domain.User{ID: uuid.New(), FirstName: "Kim", Email: "kim@example.com", Gender: domain.GenderOther, UserType: "individual"}
	_, err = s.InsertUsers(ctx, []domain.User{other})
	require.NoError(t, err)

	accounts := []domain.Account{
		{ID: uuid.New(), Name: "Savings", UserID: u.ID},
		{ID: uuid.New(), Name: "Savings", UserID: other.ID},
	}
	accRes, err := s.InsertAccounts(ctx, accounts)
	require.NoError(t, err)
	assert.Len(t, accRes.Created(), 2, "same name under different users is a different account")

	dup, err := s.InsertAccounts(ctx, []domain.Account{{ID: uuid.New(), Name: "Savings", UserID: u.ID}})
	require.NoError(t, err)
	assert.Len(t, dup.Duplicates(), 1)

	found, err := s.FindAccounts(ctx, []uuid.UUID{u.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, accounts[0].ID, found[0].ID)
}

// seedPolicy stores one policy with fresh references; a repeated email
// reuses the user already stored under it.
func seedPolicy(t *testing.T, s *Store, firstName, email, number string, start time.Time, end *time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	agent := domain.Agent{ID: uuid.New(), Name: "agent-" + number}
	cat := domain.Category{ID: uuid.New(), Name: "cat-" + number}
	car := domain.Carrier{ID: uuid.New(), Name: "carrier-" + number}
	user := domain.User{ID: uuid.New(), FirstName: firstName, Email: email, Gender: domain.GenderOther, UserType: "individual"}

	_, err := s.InsertAgents(ctx, []domain.Agent{agent})
	require.NoError(t, err)
	_, err = s.InsertCategories(ctx, []domain.Category{cat})
	require.NoError(t, err)
	_, err = s.InsertCarriers(ctx, []domain.Carrier{car})
	require.NoError(t, err)
	_, err = s.InsertUsers(ctx, []domain.User{user})
	require.NoError(t, err)
	users, err := s.FindUsers(ctx, []string{email})
	require.NoError(t, err)
	require.Len(t, users, 1)
	user = users[0]

	acc := domain.Account{ID: uuid.New(), Name: "acct-" + number, UserID: user.ID}
	_, err = s.InsertAccounts(ctx, []domain.Account{acc})
	require.NoError(t, err)

	res, err := s.InsertPolicies(ctx, []domain.Policy{{
		ID: uuid.New(), Number: number, StartDate: start, EndDate: end,
		CategoryID: cat.ID, CarrierID: car.ID, UserID: user.ID, AccountID: acc.ID, AgentID: agent.ID,
	}})
	require.NoError(t, err)
	require.Len(t, res.Created(), 1)
	return user.ID
}

func TestPolicies(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	end := day("2025-01-01")
	lura := seedPolicy(t, s, "Lura", "lura@example.com", "P1", day("2024-01-01"), &end)
	seedPolicy(t, s, "Lura", "lura@example.com", "P4", day("2024-06-01"), nil)
	seedPolicy(t, s, "Laura", "laura@example.com", "P2", day("2024-06-01"), nil)
	seedPolicy(t, s, "Ben", "ben@example.com", "P3", day("2023-01-01"), nil)

	numbers, err := s.FindPolicyNumbers(ctx, []string{"P1", "P3", "P9"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P1", "P3"}, numbers)

	views, err := s.PoliciesForUser(ctx, lura)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "P4", views[0].Number, "newest start date first")
	assert.Nil(t, views[0].EndDate)
	assert.Equal(t, "P1", views[1].Number)
	require.NotNil(t, views[1].EndDate)
	assert.True(t, end.Equal(*views[1].EndDate))
	assert.Equal(t, "cat-P1", views[1].Category)
	assert.Equal(t, "carrier-P1", views[1].Carrier)
	assert.Equal(t, "acct-P1", views[1].Account)

	none, err := s.PoliciesForUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindUserByFirstName(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedPolicy(t, s, "Lura", "lura@example.com", "P1", day("2024-01-01"), nil)
	seedPolicy(t, s, "Laura", "laura@example.com", "P2", day("2024-06-01"), nil)

	u, err := s.FindUserByFirstName(ctx, "URA")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Laura", u.FirstName, "first by first name")

	u, err = s.FindUserByFirstName(ctx, "lur")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "lura@example.com", u.Email)

	u, err = s.FindUserByFirstName(ctx, "%")
	require.NoError(t, err)
	assert.Nil(t, u, "LIKE wildcards in the query are literal")
}

func TestAggregatedPolicies(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	empty, err := s.AggregatedPolicies(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	seedPolicy(t, s, "Lura", "lura@example.com", "P1", day("2024-01-01"), nil)
	seedPolicy(t, s, "Lura", "lura@example.com", "P4", day("2024-06-01"), nil)
	seedPolicy(t, s, "Laura", "laura@example.com", "P2", day("2024-06-01"), nil)
	seedPolicy(t, s, "Ben", "ben@example.com", "P3", day("2023-01-01"), nil)

	groups, err := s.AggregatedPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "Lura", groups[0].User.FirstName, "most policies first")
	require.Len(t, groups[0].Policies, 2)
	assert.Equal(t, "P4", groups[0].Policies[0].Number)
	assert.Equal(t, 2, groups[0].UniqueCategories)
	assert.Equal(t, 2, groups[0].UniqueCarriers)
	assert.Equal(t, "Ben", groups[1].User.FirstName)
	assert.Equal(t, "Laura", groups[2].User.FirstName)
}

func TestInsertPolicies_DuplicateNumber(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	lura := seedPolicy(t, s, "Lura", "lura@example.com", "P1", day("2024-01-01"), nil)

	views, err := s.PoliciesForUser(ctx, lura)
	require.NoError(t, err)
	require.Len(t, views, 1)

	// Reuse the existing references with a fresh policy ID.
	var ids struct{ cat, car, user, acc, agent uuid.UUID }
	row := s.DB().QueryRowContext(ctx, `SELECT category_id, carrier_id, user_id, account_id, agent_id FROM policy_infos WHERE policy_number = 'P1'`)
	require.NoError(t, row.Scan(&ids.cat, &ids.car, &ids.user, &ids.acc, &ids.agent))

	res, err := s.InsertPolicies(ctx, []domain.Policy{{
		ID: uuid.New(), Number: "P1", StartDate: day("2024-02-01"),
		CategoryID: ids.cat, CarrierID: ids.car, UserID: ids.user, AccountID: ids.acc, AgentID: ids.agent,
	}})
	require.NoError(t, err)
	assert.Len(t, res.Duplicates(), 1)
}

func TestInsertPolicies_ForeignKeyEnforced(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertPolicies(context.Background(), []domain.Policy{{
		ID: uuid.New(), Number: "PX", StartDate: day("2024-01-01"),
		CategoryID: uuid.New(), CarrierID: uuid.New(), UserID: uuid.New(), AccountID: uuid.New(), AgentID: uuid.New(),
	}})
	assert.Error(t, err)
}
