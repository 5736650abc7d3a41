package rows

import "strings"

// Field is one of the recognized input columns.
type Field int

const (
	FieldAgent Field = iota
	FieldCategoryName
	FieldCompanyName
	FieldFirstName
	FieldDOB
	FieldAddress
	FieldCity
	FieldState
	FieldZip
	FieldPhone
	FieldEmail
	FieldGender
	FieldUserType
	FieldAccountName
	FieldPolicyNumber
	FieldPolicyStartDate
	FieldPolicyEndDate

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldAgent:           "agent",
	FieldCategoryName:    "category_name",
	FieldCompanyName:     "company_name",
	FieldFirstName:       "firstname",
	FieldDOB:             "dob",
	FieldAddress:         "address",
	FieldCity:            "city",
	FieldState:           "state",
	FieldZip:             "zip",
	FieldPhone:           "phone",
	FieldEmail:           "email",
	FieldGender:          "gender",
	FieldUserType:        "userType",
	FieldAccountName:     "account_name",
	FieldPolicyNumber:    "policy_number",
	FieldPolicyStartDate: "policy_start_date",
	FieldPolicyEndDate:   "policy_end_date",
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, fieldCount)
	for f, name := range fieldNames {
		m[strings.ToLower(name)] = Field(f)
	}
	return m
}()

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// Fields lists every recognized column in header order.
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// LookupField matches a header cell case-insensitively, ignoring surrounding space.
func LookupField(header string) (Field, bool) {
	f, ok := fieldsByName[strings.ToLower(strings.TrimSpace(header))]
	return f, ok
}

// Row is one input record. Absent columns read as "".
type Row struct {
	// Line is the 1-based source line (CSV) or sheet row (XLSX).
	Line   int
	values [fieldCount]string
}

// NewRow builds a Row from field values; used by tests and callers that
// already hold structured data.
func NewRow(line int, values map[Field]string) Row {
	r := Row{Line: line}
	for f, v := range values {
		r.Set(f, v)
	}
	return r
}

func (r Row) Get(f Field) string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return r.values[f]
}

// Set stores v trimmed of surrounding space.
func (r *Row) Set(f Field, v string) {
	if f < 0 || f >= fieldCount {
		return
	}
	r.values[f] = strings.TrimSpace(v)
}

// header maps column positions to fields; -1 marks ignored columns.
type header []Field

func parseHeader(cells []string) header {
	h := make(header, len(cells))
	for i, c := range cells {
		h[i] = -1
		if f, ok := LookupField(c); ok {
			h[i] = f
		}
	}
	return h
}

func (h header) row(line int, cells []string) Row {
	r := Row{Line: line}
	for i, c := range cells {
		if i < len(h) && h[i] >= 0 {
			r.Set(h[i], c)
		}
	}
	return r
}
