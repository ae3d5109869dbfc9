package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Filter is the small predicate algebra handed to the persistence layer to
// bound list queries: Unrestricted | Equals | In | Or. Filters are built from
// at most one directory lookup and never load resources themselves.
type Filter interface {
	filter()
}

// Unrestricted matches every row.
type Unrestricted struct{}

// Equals matches rows whose field equals the value. A nil value matches rows
// where the field is NULL.
type Equals struct {
	Field string
	Value any
}

// In matches rows whose field is contained in the set. An empty set matches
// nothing.
type In struct {
	Field  string
	Values []any
}

// Or matches rows satisfying any of the branches.
type Or struct {
	Filters []Filter
}

func (Unrestricted) filter() {}
func (Equals) filter()       {}
func (In) filter()           {}
func (Or) filter()           {}

// InIDs builds an In filter over a set of user IDs.
func InIDs(field string, ids []uuid.UUID) In {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return In{Field: field, Values: values}
}

// SQL renders the filter as a pgx-compatible WHERE fragment with positional
// placeholders starting at argIndex. Unrestricted renders TRUE and an empty
// In renders FALSE, so the fragment can always be conjoined verbatim.
func SQL(f Filter, argIndex int) (string, []any) {
	clause, args, _ := render(f, argIndex)
	return clause, args
}

func render(f Filter, argIndex int) (string, []any, int) {
	switch v := f.(type) {
	case Unrestricted:
		return "TRUE", nil, argIndex
	case Equals:
		if v.Value == nil {
			return v.Field + " IS NULL", nil, argIndex
		}
		return fmt.Sprintf("%s = $%d", v.Field, argIndex), []any{v.Value}, argIndex + 1
	case In:
		if len(v.Values) == 0 {
			return "FALSE", nil, argIndex
		}
		placeholders := make([]string, len(v.Values))
		for i := range v.Values {
			placeholders[i] = fmt.Sprintf("$%d", argIndex+i)
		}
		clause := fmt.Sprintf("%s IN (%s)", v.Field, strings.Join(placeholders, ", "))
		return clause, v.Values, argIndex + len(v.Values)
	case Or:
		if len(v.Filters) == 0 {
			return "FALSE", nil, argIndex
		}
		branches := make([]string, 0, len(v.Filters))
		var args []any
		for _, branch := range v.Filters {
			clause, branchArgs, next := render(branch, argIndex)
			branches = append(branches, clause)
			args = append(args, branchArgs...)
			argIndex = next
		}
		return "(" + strings.Join(branches, " OR ") + ")", args, argIndex
	default:
		return "FALSE", nil, argIndex
	}
}
