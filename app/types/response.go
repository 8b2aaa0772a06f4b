package types

import "github.com/vibast-solutions/ms-go-accounts/app/entity"

type AccountResponse struct {
	ID               uint64 `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Confirmed        bool   `json:"confirmed"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

func NewAccountResponse(account *entity.Account) *AccountResponse {
	return &AccountResponse{
		ID:               account.ID,
		Email:            account.Email,
		FirstName:        account.FirstName,
		LastName:         account.LastName,
		Confirmed:        account.Confirmed,
		TwoFactorEnabled: account.TwoFactorEnabled,
		CreatedAt:        account.CreatedAt.Unix(),
		UpdatedAt:        account.UpdatedAt.Unix(),
	}
}

// AuthResponse is returned whenever a session starts. The matching refresh
// token travels out of band.
type AuthResponse struct {
	Account     *AccountResponse `json:"user"`
	AccessToken string           `json:"access_token"`
	ExpiresIn   int64            `json:"expires_in"`
}

// LoginResponse carries either a session or, for two-factor accounts, the
// message describing where the code went.
type LoginResponse struct {
	Auth             *AuthResponse `json:"auth,omitempty"`
	TwoFactorPending bool          `json:"two_factor_pending"`
	Message          string        `json:"message,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
