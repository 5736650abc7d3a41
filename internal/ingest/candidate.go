package ingest

import (
	"strings"
	"time"

	"github.com/vvka-141/polingest/internal/domain"
	"github.com/vvka-141/polingest/internal/rows"
)

// dateLayouts are tried in order. Day-first forms are not accepted: "02-01-2006"
// and "01-02-2006" cannot be told apart.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

// parseDate returns nil for empty or unrecognized input.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// candidate is one input row with every value coerced to its typed form.
// Empty keys mean the row contributes nothing for that kind.
type candidate struct {
	index int
	line  int

	agent    string
	category string
	carrier  string

	email string
	// user is nil when the row carries no usable user attributes
	// (see userErr).
	user    *domain.User
	userErr string

	account string

	policyNumber string
	startRaw     string
	start        *time.Time
	end          *time.Time
}

// candidates coerces the batch once, before resolution.
func candidates(batch []rows.Row, defaultUserType string) []candidate {
	out := make([]candidate, len(batch))
	for i, r := range batch {
		c := candidate{
			index:        i,
			line:         r.Line,
			agent:        r.Get(rows.FieldAgent),
			category:     r.Get(rows.FieldCategoryName),
			carrier:      r.Get(rows.FieldCompanyName),
			email:        domain.NormalizeEmail(r.Get(rows.FieldEmail)),
			account:      r.Get(rows.FieldAccountName),
			policyNumber: r.Get(rows.FieldPolicyNumber),
			startRaw:     r.Get(rows.FieldPolicyStartDate),
			start:        parseDate(r.Get(rows.FieldPolicyStartDate)),
			end:          parseDate(r.Get(rows.FieldPolicyEndDate)),
		}
		if c.email != "" {
			c.user, c.userErr = userFromRow(r, c.email, defaultUserType)
		}
		out[i] = c
	}
	return out
}

func userFromRow(r rows.Row, email, defaultUserType string) (*domain.User, string) {
	firstName := r.Get(rows.FieldFirstName)
	if firstName == "" {
		return nil, "missing firstname"
	}
	return &domain.User{
		FirstName: firstName,
		DOB:       parseDate(r.Get(rows.FieldDOB)),
		Address: domain.Address{
			Street: r.Get(rows.FieldAddress),
			City:   r.Get(rows.FieldCity),
			State:  r.Get(rows.FieldState),
			Zip:    r.Get(rows.FieldZip),
		},
		Phone:    r.Get(rows.FieldPhone),
		State:    r.Get(rows.FieldState),
		ZipCode:  r.Get(rows.FieldZip),
		Email:    email,
		Gender:   domain.ParseGender(r.Get(rows.FieldGender)),
		UserType: domain.NormalizeUserType(r.Get(rows.FieldUserType), defaultUserType),
	}, ""
}

// distinct returns the non-empty values of key over cs, in first-seen order.
func distinct(cs []candidate, key func(candidate) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cs {
		k := key(c)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
