package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vvka-141/polingest/internal/domain"
)

func (s *Store) FindAgents(ctx context.Context, names []string) ([]domain.Agent, error) {
	found, err := s.findNamed(ctx, "agents", "name", names)
	out := make([]domain.Agent, len(found))
	for i, n := range found {
		out[i] = domain.Agent{ID: n.ID, Name: n.Name}
	}
	return out, err
}

func (s *Store) FindCategories(ctx context.Context, names []string) ([]domain.Category, error) {
	found, err := s.findNamed(ctx, "policy_categories", "category_name", names)
	out := make([]domain.Category, len(found))
	for i, n := range found {
		out[i] = domain.Category{ID: n.ID, Name: n.Name}
	}
	return out, err
}

func (s *Store) FindCarriers(ctx context.Context, names []string) ([]domain.Carrier, error) {
	found, err := s.findNamed(ctx, "policy_carriers", "company_name", names)
	out := make([]domain.Carrier, len(found))
	for i, n := range found {
		out[i] = domain.Carrier{ID: n.ID, Name: n.Name}
	}
	return out, err
}

const userColumns = `id, first_name, dob, address_street, address_city, address_state, address_zip,
	phone, state, zip_code, email, gender, user_type`

type scanner interface {
	Scan(dest ...any) error
}

// scanUser reads the userColumns prefix of a row, then extra.
func scanUser(sc scanner, u *domain.User, extra ...any) error {
	var dob sql.NullString
	dest := append([]any{&u.ID, &u.FirstName, &dob, &u.Address.Street, &u.Address.City, &u.Address.State,
		&u.Address.Zip, &u.Phone, &u.State, &u.ZipCode, &u.Email, &u.Gender, &u.UserType}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return err
	}
	var err error
	u.DOB, err = parseDate(dob)
	return err
}

func (s *Store) FindUsers(ctx context.Context, emails []string) ([]domain.User, error) {
	var out []domain.User
	for _, part := range chunk(emails, maxRowsPerStatement) {
		q := `SELECT ` + userColumns + ` FROM users WHERE email IN (` + placeholders(len(part), 1) + `)`
		rows, err := s.db.QueryContext(ctx, q, anySlice(part)...)
		if err != nil {
			return nil, fmt.Errorf("find users: %w", err)
		}
		for rows.Next() {
			var u domain.User
			if err := scanUser(rows, &u); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan users: %w", err)
			}
			out = append(out, u)
		}
		if err := closeRows(rows); err != nil {
			return nil, fmt.Errorf("find users: %w", err)
		}
	}
	return out, nil
}

// FindUserByFirstName matches first names case-insensitively by substring.
func (s *Store) FindUserByFirstName(ctx context.Context, firstName string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users
WHERE lower(first_name) LIKE '%' || lower(?) || '%' ESCAPE '\'
ORDER BY first_name, email
LIMIT 1`
	var u domain.User
	err := scanUser(s.db.QueryRowContext(ctx, q, escapeLike(firstName)), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by first name: %w", err)
	}
	return &u, nil
}

func (s *Store) FindAccounts(ctx context.Context, userIDs []uuid.UUID) ([]domain.Account, error) {
	var out []domain.Account
	for _, part := range chunk(userIDs, maxRowsPerStatement) {
		q := `SELECT id, name, user_id FROM user_accounts WHERE user_id IN (` + placeholders(len(part), 1) + `)`
		rows, err := s.db.QueryContext(ctx, q, anySlice(part)...)
		if err != nil {
			return nil, fmt.Errorf("find accounts: %w", err)
		}
		for rows.Next() {
			var a domain.Account
			if err := rows.Scan(&a.ID, &a.Name, &a.UserID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan accounts: %w", err)
			}
			out = append(out, a)
		}
		if err := closeRows(rows); err != nil {
			return nil, fmt.Errorf("find accounts: %w", err)
		}
	}
	return out, nil
}

func (s *Store) FindPolicyNumbers(ctx context.Context, numbers []string) ([]string, error) {
	var out []string
	for _, part := range chunk(numbers, maxRowsPerStatement) {
		q := `SELECT policy_number FROM policy_infos WHERE policy_number IN (` + placeholders(len(part), 1) + `)`
		rows, err := s.db.QueryContext(ctx, q, anySlice(part)...)
		if err != nil {
			return nil, fmt.Errorf("find policy numbers: %w", err)
		}
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan policy numbers: %w", err)
			}
			out = append(out, n)
		}
		if err := closeRows(rows); err != nil {
			return nil, fmt.Errorf("find policy numbers: %w", err)
		}
	}
	return out, nil
}

func (s *Store) InsertAgents(ctx context.Context, items []domain.Agent) (domain.InsertResult[domain.Agent], error) {
	values := make([][]any, len(items))
	for i, a := range items {
		values[i] = []any{a.ID, a.Name}
	}
	created, err := s.insertReturning(ctx, "agents", []string{"id", "name"}, values)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(a domain.Agent) uuid.UUID { return a.ID }, created), nil
}

func (s *Store) InsertCategories(ctx context.Context, items []domain.Category) (domain.InsertResult[domain.Category], error) {
	values := make([][]any, len(items))
	for i, c := range items {
		values[i] = []any{c.ID, c.Name}
	}
	created, err := s.insertReturning(ctx, "policy_categories", []string{"id", "category_name"}, values)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(c domain.Category) uuid.UUID { return c.ID }, created), nil
}

func (s *Store) InsertCarriers(ctx context.Context, items []domain.Carrier) (domain.InsertResult[domain.Carrier], error) {
	values := make([][]any, len(items))
	for i, c := range items {
		values[i] = []any{c.ID, c.Name}
	}
	created, err := s.insertReturning(ctx, "policy_carriers", []string{"id", "company_name"}, values)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(c domain.Carrier) uuid.UUID { return c.ID }, created), nil
}

func (s *Store) InsertUsers(ctx context.Context, items []domain.User) (domain.InsertResult[domain.User], error) {
	columns := strings.Fields(strings.ReplaceAll(userColumns, ",", " "))
	values := make([][]any, len(items))
	for i, u := range items {
		values[i] = []any{u.ID, u.FirstName, formatDate(u.DOB), u.Address.Street, u.Address.City, u.Address.State,
			u.Address.Zip, u.Phone, u.State, u.ZipCode, u.Email, string(u.Gender), u.UserType}
	}
	created, err := s.insertReturning(ctx, "users", columns, values)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(u domain.User) uuid.UUID { return u.ID }, created), nil
}

func (s *Store) InsertAccounts(ctx context.Context, items []domain.Account) (domain.InsertResult[domain.Account], error) {
	values := make([][]any, len(items))
	for i, a := range items {
		values[i] = []any{a.ID, a.Name, a.UserID}
	}
	created, err := s.insertReturning(ctx, "user_accounts", []string{"id", "name", "user_id"}, values)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(a domain.Account) uuid.UUID { return a.ID }, created), nil
}

func (s *Store) InsertPolicies(ctx context.Context, items []domain.Policy) (domain.InsertResult[domain.Policy], error) {
	columns := []string{"id", "policy_number", "start_date", "end_date",
		"category_id", "carrier_id", "user_id", "account_id", "agent_id"}
	values := make([][]any, len(items))
	for i, p := range items {
		values[i] = []any{p.ID, p.Number, formatDate(&p.StartDate), formatDate(p.EndDate),
			p.CategoryID, p.CarrierID, p.UserID, p.AccountID, p.AgentID}
	}
	created, err := s.insertReturning(ctx, "policy_infos", columns, values)
	if err != nil {
		return nil, err
	}
	return domain.Classify(items, func(p domain.Policy) uuid.UUID { return p.ID }, created), nil
}

const policyViewQuery = `
SELECT u.id, u.first_name, u.dob, u.address_street, u.address_city, u.address_state, u.address_zip,
       u.phone, u.state, u.zip_code, u.email, u.gender, u.user_type,
       p.policy_number, p.start_date, p.end_date, c.category_name, ca.company_name, ag.name, ua.name
FROM policy_infos p
JOIN users u              ON u.id = p.user_id
JOIN policy_categories c  ON c.id = p.category_id
JOIN policy_carriers ca   ON ca.id = p.carrier_id
JOIN agents ag            ON ag.id = p.agent_id
JOIN user_accounts ua     ON ua.id = p.account_id`

func (s *Store) PoliciesForUser(ctx context.Context, userID uuid.UUID) ([]domain.PolicyView, error) {
	owned, err := s.ownedPolicies(ctx, policyViewQuery+`
WHERE p.user_id = ?
ORDER BY p.start_date DESC, p.policy_number`, userID)
	if err != nil {
		return nil, fmt.Errorf("policies for user: %w", err)
	}
	out := make([]domain.PolicyView, len(owned))
	for i, o := range owned {
		out[i] = o.Policy
	}
	return out, nil
}

func (s *Store) AggregatedPolicies(ctx context.Context) ([]domain.UserPolicies, error) {
	owned, err := s.ownedPolicies(ctx, policyViewQuery+`
ORDER BY u.first_name, u.email, p.start_date DESC, p.policy_number`)
	if err != nil {
		return nil, fmt.Errorf("aggregate policies: %w", err)
	}
	return domain.GroupByUser(owned), nil
}

func (s *Store) ownedPolicies(ctx context.Context, q string, args ...any) ([]domain.OwnedPolicy, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OwnedPolicy
	for rows.Next() {
		var (
			o          domain.OwnedPolicy
			start, end sql.NullString
		)
		v := &o.Policy
		if err := scanUser(rows, &o.Owner, &v.Number, &start, &end, &v.Category, &v.Carrier, &v.Agent, &v.Account); err != nil {
			return nil, fmt.Errorf("scan policy view: %w", err)
		}
		sd, err := parseDate(start)
		if err != nil || sd == nil {
			return nil, fmt.Errorf("policy %s: bad start date %q", v.Number, start.String)
		}
		v.StartDate = *sd
		if v.EndDate, err = parseDate(end); err != nil {
			return nil, fmt.Errorf("policy %s: bad end date %q", v.Number, end.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
