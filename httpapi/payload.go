package httpapi

import "github.com/MrEthical07/authcore"

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	Message          string             `json:"message"`
	RequireTwoFactor bool               `json:"require_2fa"`
	User             *authcore.Identity `json:"user,omitempty"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,numeric,min=6,max=8"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name                 string `json:"name"                  validate:"required,max=255"`
	Email                string `json:"email"                 validate:"required,email,max=255"`
	Password             string `json:"password"              validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type verifyResetRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

type resetPasswordRequest struct {
	Email                string `json:"email"                 validate:"required,email"`
	Token                string `json:"token"                 validate:"required"`
	Password             string `json:"password"              validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

type profileRequest struct {
	Name  string `json:"name"  validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

type changePasswordRequest struct {
	CurrentPassword      string `json:"current_password"      validate:"required"`
	Password             string `json:"password"              validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

type createUserRequest struct {
	Name          string `json:"name"           validate:"required,max=255"`
	Email         string `json:"email"          validate:"required,email,max=255"`
	Password      string `json:"password"       validate:"required"`
	Role          string `json:"role"           validate:"required"`
	Active        *bool  `json:"is_active"`
	EmailVerified bool   `json:"email_verified"`
}

type updateUserRequest struct {
	Name     *string `json:"name"      validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email"     validate:"omitempty,email,max=255"`
	Password *string `json:"password"  validate:"omitempty"`
	Role     *string `json:"role"      validate:"omitempty,min=1"`
	Active   *bool   `json:"is_active"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}
