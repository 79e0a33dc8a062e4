package lineage

import "strings"

// Record is one flat row of extraction output, keyed by header name.
type Record map[string]string

// Batch is one unit of input, typically one file.
type Batch struct {
	Label   string
	Records []Record
}

// Role selects which side of a record an endpoint is read from.
type Role string

// Record roles, used as key prefixes.
const (
	RoleSource Role = "SOURCE"
	RoleTarget Role = "TARGET"
)

// Metadata keys copied onto edges.
const (
	KeyRelationType = "RELATION_TYPE"
	KeyEffectType   = "EFFECTTYPE"
)

// Endpoint is a resolved (table, column) pair for one role of a record.
type Endpoint struct {
	TableID    string
	TableLabel string
	Column     string
}

// Get returns the trimmed value for key. Missing and blank are equivalent.
func (r Record) Get(key string) string {
	return strings.TrimSpace(r[key])
}

func (r Record) role(role Role, suffix string) string {
	return r.Get(string(role) + "_" + suffix)
}

// ExtractEndpoint resolves the endpoint for role.
// It returns false when the table or the column cannot be resolved.
func ExtractEndpoint(r Record, role Role) (Endpoint, bool) {
	table := r.role(role, "TABLE")
	tableID := r.role(role, "TABLE_ID")

	id := table
	if id == "" {
		id = joinNonEmpty(".", r.role(role, "DB"), r.role(role, "SCHEMA"), tableID)
	}
	if id == "" {
		id = tableID
	}

	column := r.role(role, "COLUMN")
	if column == "" {
		column = r.role(role, "COLUMN_ID")
	}

	if id == "" || column == "" {
		return Endpoint{}, false
	}

	label := table
	if label == "" {
		label = id
	}

	return Endpoint{TableID: id, TableLabel: label, Column: column}, true
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
