package models

import (
	"encoding/json"
	"fmt"
)

// User mirrors a users document. Team is the canonical single team
// reference; nil means the user has not joined a team.
type User struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Team     *string `json:"team"`
	PhotoURL *string `json:"photoURL,omitempty"`
}

// DisplayName falls back to the email when no name was recorded.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// TeamID returns the team reference or "" when unset.
func (u User) TeamID() string {
	if u.Team == nil {
		return ""
	}
	return *u.Team
}

func DecodeUser(id string, data []byte) (User, error) {
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	u.ID = id
	return u, nil
}
