package api

// User is the public view of an account.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	DisplayName     string `json:"display_name"`
	DefaultCurrency string `json:"default_currency"`
	CreatedAt       int64  `json:"created_at"`
}

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	DisplayName     string `json:"display_name" validate:"required,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	DefaultCurrency string `json:"default_currency,omitempty" validate:"omitempty,iso4217"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}
