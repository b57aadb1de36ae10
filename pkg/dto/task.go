package dto

type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Assignees   []string `json:"assignees"`
	TeamID      string   `json:"team_id"`
}

type TaskResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CreatedBy   string   `json:"created_by"`
	Team        string   `json:"team"`
	Assignees   []string `json:"assignees"`
	Status      string   `json:"status"`
}

type TaskStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type TaskAssigneesResponse struct {
	ID        string   `json:"id"`
	Assignees []string `json:"assignees"`
}
