package domain

// ============================================================
// Auth — Request / Response types
// ============================================================

// SignupRequest is the body for POST /v1/auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login. The token is also set as
// the "token" cookie.
type AuthResponse struct {
	Token      string `json:"token"`
	ExpiresIn  int    `json:"expiresIn"`
	Username   string `json:"username"`
	RedirectTo string `json:"redirectTo,omitempty"`
}
