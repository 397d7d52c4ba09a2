package models

// LoginRequest is the body of POST /auth/ca-login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginResponse carries the bearer token and the logged-in user.
type LoginResponse struct {
	Token string `json:"token"`
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
