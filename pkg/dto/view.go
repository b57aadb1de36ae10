package dto

type SearchRequest struct {
	Query string `json:"query"`
}

type SessionResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type ViewResponse struct {
	Phase           string           `json:"phase"`
	Session         *SessionResponse `json:"session"`
	ActiveTeam      *TeamResponse    `json:"active_team"`
	Ambiguous       bool             `json:"ambiguous"`
	Roster          []UserResponse   `json:"roster"`
	AssignablePool  []UserResponse   `json:"assignable_pool"`
	Tasks           []TaskResponse   `json:"tasks"`
	Assigned        []TaskResponse   `json:"assigned"`
	Search          string           `json:"search"`
	MissingMembers  []string         `json:"missing_members"`
	StaleReferences []string         `json:"stale_references"`
	Degraded        []string         `json:"degraded"`
}
