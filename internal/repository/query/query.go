// Package query builds the parameterised SQL statements used by the user store.
//
// Statements are written with `?` placeholders; the store rebinds them to the
// placeholder style of the active driver. Caller supplied values only ever travel
// as arguments. Column names come from the fixed Column set.
package query

import (
	"errors"
	"fmt"
	"strings"

	"user-registry/internal/domain"
)

const (
	// DefaultLimit is the page size used when the caller does not supply one.
	DefaultLimit = 100
	// DefaultSkip is the offset used when the caller does not supply one.
	DefaultSkip = 0

	table         = "users"
	selectColumns = "id, username, email, created_at"
)

var (
	// ErrInvalidWindow is returned for a negative limit or skip.
	ErrInvalidWindow = errors.New("limit and skip must be non-negative")
	// ErrNoAssignments is returned when an update statement would set nothing.
	ErrNoAssignments = errors.New("update requires at least one assignment")
	// ErrUnknownColumn is returned for a column outside the writable set.
	ErrUnknownColumn = errors.New("unknown column")
)

// Column is a writable, searchable user column.
type Column string

const (
	Username Column = "username"
	Email    Column = "email"
)

func (c Column) valid() bool {
	return c == Username || c == Email
}

// Statement is SQL text with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// ListParams describes a search filter and pagination window.
type ListParams struct {
	Search string
	Limit  int
	Skip   int
}

// Assignment sets one column in an UPDATE.
type Assignment struct {
	Column Column
	Value  any
}

// BuildList returns the page SELECT and the matching COUNT statement.
// A non-empty search matches username or email as a case-insensitive substring.
// Rows are ordered by id so consecutive pages are stable.
func BuildList(p ListParams) (Statement, Statement, error) {
	if p.Limit < 0 || p.Skip < 0 {
		return Statement{}, Statement{}, ErrInvalidWindow
	}

	where, args := searchFilter(p.Search)

	var sel strings.Builder
	sel.WriteString("SELECT " + selectColumns + " FROM " + table)
	sel.WriteString(where)
	sel.WriteString(" ORDER BY id ASC LIMIT ? OFFSET ?")
	selArgs := make([]any, 0, len(args)+2)
	selArgs = append(selArgs, args...)
	selArgs = append(selArgs, p.Limit, p.Skip)

	count := Statement{
		SQL:  "SELECT COUNT(*) FROM " + table + where,
		Args: args,
	}
	return Statement{SQL: sel.String(), Args: selArgs}, count, nil
}

func searchFilter(search string) (string, []any) {
	if search == "" {
		return "", nil
	}
	// both sides fold through the store's LOWER so they always agree
	pattern := "%" + escapeLike(search) + "%"
	clause := fmt.Sprintf(" WHERE (LOWER(%s) LIKE LOWER(?) ESCAPE '\\' OR LOWER(%s) LIKE LOWER(?) ESCAPE '\\')", Username, Email)
	return clause, []any{pattern, pattern}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BuildGet selects one user by id.
func BuildGet(id int64) Statement {
	return Statement{
		SQL:  "SELECT " + selectColumns + " FROM " + table + " WHERE id = ?",
		Args: []any{id},
	}
}

// BuildExists selects a single constant row when the id exists.
func BuildExists(id int64) Statement {
	return Statement{
		SQL:  "SELECT 1 FROM " + table + " WHERE id = ?",
		Args: []any{id},
	}
}

// BuildConflict selects a single constant row when another user already holds
// the given username or email. Nil candidates are left out of the filter, and
// excludeID, when set, removes that user from consideration. ok is false when
// there is nothing to check.
func BuildConflict(username, email *string, excludeID *int64) (stmt Statement, ok bool) {
	var (
		ors  []string
		args []any
	)
	if username != nil {
		ors = append(ors, string(Username)+" = ?")
		args = append(args, *username)
	}
	if email != nil {
		ors = append(ors, string(Email)+" = ?")
		args = append(args, *email)
	}
	if len(ors) == 0 {
		return Statement{}, false
	}

	sql := "SELECT 1 FROM " + table + " WHERE (" + strings.Join(ors, " OR ") + ")"
	if excludeID != nil {
		sql += " AND id <> ?"
		args = append(args, *excludeID)
	}
	sql += " LIMIT 1"
	return Statement{SQL: sql, Args: args}, true
}

// BuildInsert inserts a user and returns the stored row.
func BuildInsert(username, email string) Statement {
	return Statement{
		SQL:  "INSERT INTO " + table + " (username, email) VALUES (?, ?) RETURNING " + selectColumns,
		Args: []any{username, email},
	}
}

// BuildUpdate sets the given columns on one user and returns the stored row.
func BuildUpdate(id int64, set []Assignment) (Statement, error) {
	if len(set) == 0 {
		return Statement{}, ErrNoAssignments
	}
	parts := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+1)
	for _, a := range set {
		if !a.Column.valid() {
			return Statement{}, fmt.Errorf("%w: %q", ErrUnknownColumn, string(a.Column))
		}
		parts = append(parts, string(a.Column)+" = ?")
		args = append(args, a.Value)
	}
	args = append(args, id)
	return Statement{
		SQL:  "UPDATE " + table + " SET " + strings.Join(parts, ", ") + " WHERE id = ? RETURNING " + selectColumns,
		Args: args,
	}, nil
}

// BuildDelete removes one user by id.
func BuildDelete(id int64) Statement {
	return Statement{
		SQL:  "DELETE FROM " + table + " WHERE id = ?",
		Args: []any{id},
	}
}

// Assignments converts a partial update into ordered column assignments.
func Assignments(changes domain.UserChanges) []Assignment {
	var set []Assignment
	if changes.Username != nil {
		set = append(set, Assignment{Column: Username, Value: *changes.Username})
	}
	if changes.Email != nil {
		set = append(set, Assignment{Column: Email, Value: *changes.Email})
	}
	return set
}
