package domain

import "time"

// User is a registered runner. Moderators may edit any run.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IsMod     bool      `json:"is_mod"`
	CreatedAt time.Time `json:"created_at"`
}

// CanEdit reports whether the user may edit run.
func (u *User) CanEdit(run *Run) bool {
	return u.IsMod || u.Username == run.Username
}
