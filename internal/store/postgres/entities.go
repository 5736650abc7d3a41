package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vvka-141/polingest/internal/domain"
)

func (s *Store) FindAgents(ctx context.Context, names []string) ([]domain.Agent, error) {
	found, err := s.findNamed(ctx, "agents", "name", names)
	out := make([]domain.Agent, len(found))
	for i, n := range found {
		out[i] = domain.Agent(n)
	}
	return out, err
}

func (s *Store) FindCategories(ctx context.Context, names []string) ([]domain.Category, error) {
	found, err := s.findNamed(ctx, "policy_categories", "category_name", names)
	out := make([]domain.Category, len(found))
	for i, n := range found {
		out[i] = domain.Category(n)
	}
	return out, err
}

func (s *Store) FindCarriers(ctx context.Context, names []string) ([]domain.Carrier, error) {
	found, err := s.findNamed(ctx, "policy_carriers", "company_name", names)
	out := make([]domain.Carrier, len(found))
	for i, n := range found {
		out[i] = domain.Carrier(n)
	}
	return out, err
}

const userSelect = `u.id, u.first_name, u.dob, u.address_street, u.address_city, u.address_state,
       u.address_zip, u.phone, u.state, u.zip_code, u.email, u.gender, u.user_type`

func scanUser(row pgx.CollectableRow, u *domain.User, extra ...any) error {
	var gender string
	dest := append([]any{&u.ID, &u.FirstName, &u.DOB, &u.Address.Street, &u.Address.City, &u.Address.State,
		&u.Address.Zip, &u.Phone, &u.State, &u.ZipCode, &u.Email, &gender, &u.UserType}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	u.Gender = domain.Gender(gender)
	return nil
}

func collectUser(row pgx.CollectableRow) (domain.User, error) {
	var u domain.User
	err := scanUser(row, &u)
	return u, err
}

func (s *Store) FindUsers(ctx context.Context, emails []string) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userSelect+` FROM users u WHERE u.email = ANY($1)`, emails)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	out, err := pgx.CollectRows(rows, collectUser)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return out, nil
}

// FindUserByFirstName matches first names case-insensitively by substring.
func (s *Store) FindUserByFirstName(ctx context.Context, firstName string) (*domain.User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+userSelect+`
FROM users u
WHERE u.first_name ILIKE '%' || $1 || '%'
ORDER BY u.first_name, u.email
LIMIT 1`, escapeLike(firstName))
	if err != nil {
		return nil, fmt.Errorf("find user by first name: %w", err)
	}
	users, err := pgx.CollectRows(rows, collectUser)
	if err != nil {
		return nil, fmt.Errorf("find user by first name: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (s *Store) FindAccounts(ctx context.Context, userIDs []uuid.UUID) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, user_id FROM user_accounts WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Account])
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	return out, nil
}

func (s *Store) FindPolicyNumbers(ctx context.Context, numbers []string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT policy_number FROM policy_infos WHERE policy_number = ANY($1)`, numbers)
	if err != nil {
		return nil, fmt.Errorf("find policy numbers: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("find policy numbers: %w", err)
	}
	return out, nil
}

func (s *Store) insertNamed(ctx context.Context, table, nameColumn string, items []named) (map[uuid.UUID]bool, error) {
	ids := make([]uuid.UUID, len(items))
	names := make([]string, len(items))
	for i, n := range items {
		ids[i], names[i] = n.ID, n.Name
	}
	return s.insertUnnest(ctx, table, len(items),
		[]column{{"id", "uuid[]"}, {nameColumn, "text[]"}}, ids, names)
}

func (s *Store) InsertAgents(ctx context.Context, items []domain.Agent) (domain.InsertResult[domain.Agent], error) {
	in := make([]named, len(items))
	for i, a := range items {
		in[i] = named(a)
	}
	created, err := s.insertNamed(ctx, "agents", "name", in)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(a domain.Agent) uuid.UUID { return a.ID }, created), nil
}

func (s *Store) InsertCategories(ctx context.Context, items []domain.Category) (domain.InsertResult[domain.Category], error) {
	in := make([]named, len(items))
	for i, c := range items {
		in[i] = named(c)
	}
	created, err := s.insertNamed(ctx, "policy_categories", "category_name", in)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(c domain.Category) uuid.UUID { return c.ID }, created), nil
}

func (s *Store) InsertCarriers(ctx context.Context, items []domain.Carrier) (domain.InsertResult[domain.Carrier], error) {
	in := make([]named, len(items))
	for i, c := range items {
		in[i] = named(c)
	}
	created, err := s.insertNamed(ctx, "policy_carriers", "company_name", in)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(c domain.Carrier) uuid.UUID { return c.ID }, created), nil
}

var userColumns = []column{
	{"id", "uuid[]"}, {"first_name", "text[]"}, {"dob", "date[]"},
	{"address_street", "text[]"}, {"address_city", "text[]"}, {"address_state", "text[]"}, {"address_zip", "text[]"},
	{"phone", "text[]"}, {"state", "text[]"}, {"zip_code", "text[]"},
	{"email", "text[]"}, {"gender", "text[]"}, {"user_type", "text[]"},
}

func (s *Store) InsertUsers(ctx context.Context, items []domain.User) (domain.InsertResult[domain.User], error) {
	n := len(items)
	ids := make([]uuid.UUID, n)
	dobs := make([]pgtype.Date, n)
	text := make([][]string, len(userColumns))
	for c := range text {
		text[c] = make([]string, n)
	}
	for i, u := range items {
		ids[i], dobs[i] = u.ID, date(u.DOB)
		for c, v := range []string{
			u.FirstName, u.Address.Street, u.Address.City, u.Address.State, u.Address.Zip,
			u.Phone, u.State, u.ZipCode, u.Email, string(u.Gender), u.UserType,
		} {
			text[c][i] = v
		}
	}

	created, err := s.insertUnnest(ctx, "users", n, userColumns,
		ids, text[0], dobs, text[1], text[2], text[3], text[4], text[5], text[6], text[7], text[8], text[9], text[10])
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(u domain.User) uuid.UUID { return u.ID }, created), nil
}

func (s *Store) InsertAccounts(ctx context.Context, items []domain.Account) (domain.InsertResult[domain.Account], error) {
	ids := make([]uuid.UUID, len(items))
	names := make([]string, len(items))
	userIDs := make([]uuid.UUID, len(items))
	for i, a := range items {
		ids[i], names[i], userIDs[i] = a.ID, a.Name, a.UserID
	}

	created, err := s.insertUnnest(ctx, "user_accounts", len(items),
		[]column{{"id", "uuid[]"}, {"name", "text[]"}, {"user_id", "uuid[]"}},
		ids, names, userIDs)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(a domain.Account) uuid.UUID { return a.ID }, created), nil
}

var policyColumns = []column{
	{"id", "uuid[]"}, {"policy_number", "text[]"}, {"start_date", "date[]"}, {"end_date", "date[]"},
	{"category_id", "uuid[]"}, {"carrier_id", "uuid[]"}, {"user_id", "uuid[]"}, {"account_id", "uuid[]"}, {"agent_id", "uuid[]"},
}

func (s *Store) InsertPolicies(ctx context.Context, items []domain.Policy) (domain.InsertResult[domain.Policy], error) {
	n := len(items)
	numbers := make([]string, n)
	starts, ends := make([]pgtype.Date, n), make([]pgtype.Date, n)
	refs := make([][]uuid.UUID, 6)
	for c := range refs {
		refs[c] = make([]uuid.UUID, n)
	}
	for i, p := range items {
		numbers[i], starts[i], ends[i] = p.Number, date(&p.StartDate), date(p.EndDate)
		for c, id := range []uuid.UUID{p.ID, p.CategoryID, p.CarrierID, p.UserID, p.AccountID, p.AgentID} {
			refs[c][i] = id
		}
	}

	created, err := s.insertUnnest(ctx, "policy_infos", n, policyColumns,
		refs[0], numbers, starts, ends, refs[1], refs[2], refs[3], refs[4], refs[5])
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(p domain.Policy) uuid.UUID { return p.ID }, created), nil
}

const policyViewColumns = `p.policy_number, p.start_date, p.end_date, c.category_name, ca.company_name,
       ag.name, ua.name`

const policyViewJoins = `
FROM policy_infos p
JOIN users u              ON u.id = p.user_id
JOIN policy_categories c  ON c.id = p.category_id
JOIN policy_carriers ca   ON ca.id = p.carrier_id
JOIN agents ag            ON ag.id = p.agent_id
JOIN user_accounts ua     ON ua.id = p.account_id`

func (s *Store) PoliciesForUser(ctx context.Context, userID uuid.UUID) ([]domain.PolicyView, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+policyViewColumns+policyViewJoins+`
WHERE p.user_id = $1
ORDER BY p.start_date DESC, p.policy_number`, userID)
	if err != nil {
		return nil, fmt.Errorf("policies for user: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.PolicyView])
	if err != nil {
		return nil, fmt.Errorf("policies for user: %w", err)
	}
	return out, nil
}

func (s *Store) AggregatedPolicies(ctx context.Context) ([]domain.UserPolicies, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userSelect+`, `+policyViewColumns+policyViewJoins+`
ORDER BY u.first_name, u.email, p.start_date DESC, p.policy_number`)
	if err != nil {
		return nil, fmt.Errorf("aggregate policies: %w", err)
	}

	owned, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OwnedPolicy, error) {
		var o domain.OwnedPolicy
		v := &o.Policy
		err := scanUser(row, &o.Owner, &v.Number, &v.StartDate, &v.EndDate, &v.Category, &v.Carrier, &v.Agent, &v.Account)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate policies: %w", err)
	}
	return domain.GroupByUser(owned), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
