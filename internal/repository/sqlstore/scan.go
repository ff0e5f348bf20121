package sqlstore

import (
	"fmt"
	"time"

	"user-registry/internal/domain"
)

type userRow struct {
	ID        int64    `db:"id"`
	Username  string   `db:"username"`
	Email     string   `db:"email"`
	CreatedAt nullTime `db:"created_at"`
}

func (r userRow) toDomain() domain.User {
	u := domain.User{
		ID:       r.ID,
		Username: r.Username,
		Email:    r.Email,
	}
	if r.CreatedAt.Valid {
		t := r.CreatedAt.Time
		u.CreatedAt = &t
	}
	return u
}

// SQLite hands back CURRENT_TIMESTAMP defaults as text when the column type is
// not visible to the driver (RETURNING clauses), so text forms are accepted too.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v, true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("scan created_at: unsupported type %T", value)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("scan created_at: unrecognised time %q", s)
}
