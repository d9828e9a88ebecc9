package dto

import "github.com/noah-isme/gestion-educativa-api/internal/service"

// LoginRequest carries a login attempt. Email accepts either the stored email or alias.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ClientIP string `json:"clientIP"`
}

// OpenModuleRequest asks for a module to be opened.
type OpenModuleRequest struct {
	Module   string `json:"module" validate:"required"`
	ClientIP string `json:"clientIP"`
}

// ModuleTokenRequest asks for a fresh module token.
type ModuleTokenRequest struct {
	Module string `json:"module" validate:"required"`
}

// ValidateTokenRequest checks a module token.
type ValidateTokenRequest struct {
	Token  string `json:"token" query:"token" form:"token"`
	Module string `json:"module" query:"module" form:"module" validate:"required"`
}

// AuthStatusResponse reports whether the caller has a session.
type AuthStatusResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *service.Session `json:"user"`
}

// ModuleResponse is returned when a module is opened.
type ModuleResponse struct {
	Module    string `json:"module"`
	Title     string `json:"title"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// ModuleTokenResponse carries a freshly issued token.
type ModuleTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}
