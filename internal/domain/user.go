package domain

import "time"

// User is the single resource exposed by the service.
type User struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt *time.Time
}

// UserChanges carries the fields of a partial update. Nil means "leave unchanged".
type UserChanges struct {
	Username *string
	Email    *string
}

// IsEmpty reports whether no field is set.
func (c UserChanges) IsEmpty() bool {
	return c.Username == nil && c.Email == nil
}
