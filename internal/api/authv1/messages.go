// Package authv1 defines the wire contract of the gophauth gRPC service:
// request and response messages, the JSON codec they travel with and the
// service descriptor shared by server and client.
package authv1

import "time"

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Strength struct {
	Entropy float64 `json:"entropy"`
	Level   string  `json:"level"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message  string    `json:"message"`
	User     *User     `json:"user,omitempty"`
	Strength *Strength `json:"strength,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	User        *User  `json:"user,omitempty"`
}

// ChangePasswordRequest changes the password of the caller identified by
// the access token.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ChangePasswordResponse struct {
	Message string `json:"message"`
}

type WhoAmIRequest struct{}

type WhoAmIResponse struct {
	User *User `json:"user"`
}

type StrengthRequest struct {
	Password string `json:"password"`
}

type StrengthResponse struct {
	Strength Strength `json:"strength"`
}
