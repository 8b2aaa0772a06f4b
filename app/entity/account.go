package entity

import "time"

type Account struct {
	ID               uint64
	Email            string
	FirstName        string
	LastName         string
	PasswordHash     string
	Confirmed        bool
	TwoFactorEnabled bool
	Version          uint16
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}
