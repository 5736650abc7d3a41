// Package domain holds the entities an ingestion run resolves and creates.
//
// Every entity is identified by a client-generated UUID and deduplicated by a
// natural key: Agent, Category and Carrier by name, User by email, Account by
// (name, user), Policy by number.
package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Agent struct {
	ID   uuid.UUID
	Name string
}

type Category struct {
	ID   uuid.UUID
	Name string
}

type Carrier struct {
	ID   uuid.UUID
	Name string
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender is case-insensitive; anything unrecognized is GenderOther.
func ParseGender(s string) Gender {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale:
		return g
	default:
		return GenderOther
	}
}

type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

type User struct {
	ID        uuid.UUID
	FirstName string
	DOB       *time.Time
	Address   Address
	Phone     string
	State     string
	ZipCode   string
	Email     string
	Gender    Gender
	UserType  string
}

// NormalizeEmail trims and lower-cases an address so it can serve as a key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUserType lower-cases and replaces spaces with underscores
// ("Small Business" -> "small_business"). Empty input yields def.
func NormalizeUserType(s, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return strings.Join(strings.Fields(s), "_")
}

type Account struct {
	ID     uuid.UUID
	Name   string
	UserID uuid.UUID
}

// AccountKey is the natural key of an Account.
type AccountKey struct {
	Name   string
	UserID uuid.UUID
}

func (a Account) Key() AccountKey {
	return AccountKey{Name: a.Name, UserID: a.UserID}
}

type Policy struct {
	ID         uuid.UUID
	Number     string
	StartDate  time.Time
	EndDate    *time.Time
	CategoryID uuid.UUID
	CarrierID  uuid.UUID
	UserID     uuid.UUID
	AccountID  uuid.UUID
	AgentID    uuid.UUID
}

// PolicyView is a policy with its references resolved to display values.
type PolicyView struct {
	Number    string     `json:"policyNumber"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Category  string     `json:"category"`
	Carrier   string     `json:"company"`
	Agent     string     `json:"agent"`
	Account   string     `json:"account"`
}

// OwnedPolicy pairs a policy with the user holding it.
type OwnedPolicy struct {
	Owner  User
	Policy PolicyView
}

// UserPolicies is one user's policies with the number of distinct categories
// and carriers among them.
type UserPolicies struct {
	User             User
	Policies         []PolicyView
	UniqueCategories int
	UniqueCarriers   int
}

// GroupByUser folds owned policies into one entry per user, most policies
// first. Users with equal counts keep the order they first appear in, and
// each user's policies keep their input order.
func GroupByUser(owned []OwnedPolicy) []UserPolicies {
	var (
		out        []UserPolicies
		index      = make(map[uuid.UUID]int)
		categories []map[string]bool
		carriers   []map[string]bool
	)
	for _, o := range owned {
		i, ok := index[o.Owner.ID]
		if !ok {
			i = len(out)
			index[o.Owner.ID] = i
			out = append(out, UserPolicies{User: o.Owner})
			categories = append(categories, make(map[string]bool))
			carriers = append(carriers, make(map[string]bool))
		}
		out[i].Policies = append(out[i].Policies, o.Policy)
		categories[i][o.Policy.Category] = true
		carriers[i][o.Policy.Carrier] = true
	}
	for i := range out {
		out[i].UniqueCategories = len(categories[i])
		out[i].UniqueCarriers = len(carriers[i])
	}
	slices.SortStableFunc(out, func(a, b UserPolicies) int {
		return cmp.Compare(len(b.Policies), len(a.Policies))
	})
	return out
}
