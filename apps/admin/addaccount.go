package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jkimani/karo/core"
	"github.com/jkimani/karo/core/account"
)

// addAccount updates or creates an account.Account
func (cli *commandLine) addAccount(name, phone, email, pwd string, isAdmin bool) error {
	name = core.CleanString(name)
	phone = core.CleanString(phone)
	email = core.CleanString(email, true /* lower */)

	identity := phone
	if identity == "" {
		identity = email
	}

	var create bool
	acct, err := cli.acctRepo.GetAccountByPhoneOrEmail(identity)
	if err != nil {
		if errors.Cause(err) != account.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		acct = account.Account{
			ID:        uuid.New().String(),
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		create = true
	}

	acct.Name = name
	acct.Phone = phone
	acct.Email = email
	if isAdmin {
		acct.Roles = account.AllRoles
	} else if acct.Roles == nil {
		acct.Roles = account.BursarRoles
	}
	if err := acct.SetPassword(pwd); err != nil {
		return err
	}

	if create {
		_, err = cli.acctRepo.CreateAccount(acct)
		return err
	}

	active := true
	acct.UpdatedAt = time.Now().UTC()
	_, err = cli.acctRepo.UpdateAccount(acct, &active)
	return err
}
