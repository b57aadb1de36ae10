package dto

type UserResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Team     *string `json:"team"`
	PhotoURL *string `json:"photo_url,omitempty"`
}
