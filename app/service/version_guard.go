package service

import "github.com/vibast-solutions/ms-go-accounts/app/entity"

// CheckVersion accepts a long-lived token only while its embedded version is
// still the account's current one.
func CheckVersion(account *entity.Account, claimed uint16) error {
	if account == nil || account.Version != claimed {
		return ErrUnauthorized
	}
	return nil
}
