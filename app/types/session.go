package types

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	namePattern  = regexp.MustCompile(`^[\p{L}0-9'.\s]*$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
	jwtPattern   = regexp.MustCompile(`^[A-Za-z0-9\-_=]+\.[A-Za-z0-9\-_=]+\.?[A-Za-z0-9\-_.+/=]*$`)
)

func validateEmail(email string) error {
	n := utf8.RuneCountInString(email)
	if n < 5 || n > 200 {
		return errors.New("email needs to be between 5 and 200 characters")
	}
	if !emailPattern.MatchString(email) {
		return errors.New("invalid email")
	}
	return nil
}

func validateName(field, name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < 3 || n > 50 {
		return errors.New(field + " needs to be between 3 and 50 characters")
	}
	if !namePattern.MatchString(name) {
		return errors.New("invalid " + field)
	}
	return nil
}

func validateToken(token string) error {
	n := len(token)
	if n < 20 || n > 1000 || !jwtPattern.MatchString(token) {
		return errors.New("invalid token")
	}
	return nil
}

func validatePasswordPair(password1, password2 string) error {
	if password1 == "" || password2 == "" {
		return errors.New("password1 and password2 are required")
	}
	return nil
}

type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	var body RegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RegisterRequest) Validate() error {
	if err := validateEmail(strings.TrimSpace(r.Email)); err != nil {
		return err
	}
	if err := validateName("first_name", r.FirstName); err != nil {
		return err
	}
	if err := validateName("last_name", r.LastName); err != nil {
		return err
	}

	return validatePasswordPair(r.Password1, r.Password2)
}

type ConfirmRequest struct {
	Token string `json:"token"`
}

func NewConfirmRequestFromContext(ctx echo.Context) (*ConfirmRequest, error) {
	var body ConfirmRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ConfirmRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}

	return validateToken(r.Token)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("email and password are required")
	}

	return nil
}

type ConfirmLoginRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func NewConfirmLoginRequestFromContext(ctx echo.Context) (*ConfirmLoginRequest, error) {
	var body ConfirmLoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ConfirmLoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	if !codePattern.MatchString(r.Code) {
		return errors.New("code must be 6 digits")
	}

	return nil
}

type EmailRequest struct {
	Email string `json:"email"`
}

func NewEmailRequestFromContext(ctx echo.Context) (*EmailRequest, error) {
	var body EmailRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *EmailRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}

	return validateEmail(strings.TrimSpace(r.Email))
}

type ResetPasswordRequest struct {
	Token     string `json:"token"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ResetPasswordRequest) Validate() error {
	if err := validateToken(r.Token); err != nil {
		return err
	}

	return validatePasswordPair(r.Password1, r.Password2)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	Password1   string `json:"password1"`
	Password2   string `json:"password2"`
}

func NewChangePasswordRequestFromContext(ctx echo.Context) (*ChangePasswordRequest, error) {
	var body ChangePasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return errors.New("old_password is required")
	}

	return validatePasswordPair(r.Password1, r.Password2)
}

type ChangeEmailRequest struct {
	NewEmail string `json:"new_email"`
	Password string `json:"password"`
}

func NewChangeEmailRequestFromContext(ctx echo.Context) (*ChangeEmailRequest, error) {
	var body ChangeEmailRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ChangeEmailRequest) Validate() error {
	if r.Password == "" {
		return errors.New("password is required")
	}

	return validateEmail(strings.TrimSpace(r.NewEmail))
}

type SetTwoFactorRequest struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"password"`
}

func NewSetTwoFactorRequestFromContext(ctx echo.Context) (*SetTwoFactorRequest, error) {
	var body SetTwoFactorRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *SetTwoFactorRequest) Validate() error {
	if r.Password == "" {
		return errors.New("password is required")
	}

	return nil
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

func NewDeleteAccountRequestFromContext(ctx echo.Context) (*DeleteAccountRequest, error) {
	var body DeleteAccountRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *DeleteAccountRequest) Validate() error {
	if r.Password == "" {
		return errors.New("password is required")
	}

	return nil
}
