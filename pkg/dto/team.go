package dto

type CreateTeamRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

type RepairTeamRequest struct {
	TeamID  string   `json:"team_id"`
	UserIDs []string `json:"user_ids"`
}

type TeamResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	CreatedBy string   `json:"created_by"`
	Members   []string `json:"members"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

// PartialWriteResponse accompanies 207: the team exists but FailedUserIDs
// still point elsewhere.
type PartialWriteResponse struct {
	TeamID        string   `json:"team_id"`
	FailedUserIDs []string `json:"failed_user_ids"`
	Message       string   `json:"message"`
}
