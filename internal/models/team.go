package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

type Team struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	CreatedBy string   `json:"createdBy"`
	Members   []string `json:"members"`
}

func (t Team) HasMember(userID string) bool {
	return slices.Contains(t.Members, userID)
}

func DecodeTeam(id string, data []byte) (Team, error) {
	var t Team
	if err := json.Unmarshal(data, &t); err != nil {
		return Team{}, fmt.Errorf("failed to decode team %s: %w", id, err)
	}
	if t.Name == "" {
		return Team{}, fmt.Errorf("team %s has no name", id)
	}
	t.ID = id
	return t, nil
}
