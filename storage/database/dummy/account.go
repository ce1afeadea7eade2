package dummydb

import (
	"sort"
	"strings"

	"github.com/jkimani/karo/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) query() []account.Account {
	accts := make([]account.Account, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		accts = append(accts, *a)
	}
	return accts
}

func (repo *accountRepository) CheckUniqueness(phone, email string, excluded ...account.Account) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclLen := len(excluded)
	if exclLen > 1 {
		sort.Slice(excluded, func(i, j int) bool { return excluded[i].ID < excluded[j].ID })
	}

	for _, acct := range repo.query() {
		if phone != "" && acct.Phone == phone && !isExcluded(acct, excluded, exclLen) {
			return account.ErrPhoneExists
		}
		if email != "" && acct.Email == email && !isExcluded(acct, excluded, exclLen) {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(acct account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) QueryAllAccounts() ([]account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *accountRepository) GetAccountByID(id string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acct, ok := repo.db.table[id]; ok {
		return *acct, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByPhone(phone string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.Phone != "" && acct.Phone == phone {
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.Email != "" && acct.Email == email {
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByPhoneOrEmail(identity string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if (acct.Phone != "" && acct.Phone == identity) || (acct.Email != "" && acct.Email == identity) {
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) FilterAccounts(filter account.QueryFilter) ([]account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accts := repo.query()

	// accounts with search keyword matching any Name, Phone or Email ?
	if filter.Search != "" {
		var filtered []account.Account
		for _, a := range accts {
			if strings.Contains(strings.ToLower(a.Name), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(a.Phone), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(a.Email), strings.ToLower(filter.Search)) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	// accounts with any of the specified roles
	if accts != nil && len(filter.Roles) > 0 {
		var filtered []account.Account
		for _, a := range accts {
			for _, r := range filter.Roles {
				if a.RoleStartsWith(r) {
					filtered = append(filtered, a)
					break
				}
			}
		}
		accts = filtered
	}
	if accts != nil && filter.IsActive != nil {
		var filtered []account.Account
		for _, a := range accts {
			if a.IsActive == *filter.IsActive {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedFrom.IsZero() {
		var filtered []account.Account
		timeUTC := filter.CreatedFrom.UTC()
		for _, a := range accts {
			if a.CreatedAt.Equal(timeUTC) || a.CreatedAt.After(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedTo.IsZero() {
		var filtered []account.Account
		timeUTC := filter.CreatedTo.UTC()
		for _, a := range accts {
			if a.CreatedAt.Before(timeUTC) || a.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}

	return accts, nil
}

func (repo *accountRepository) UpdateAccount(acct account.Account, isActive *bool) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.table[acct.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if acct.Roles != nil {
		orig.Roles = acct.Roles
	}
	if acct.PasswordHash != nil {
		orig.PasswordHash = acct.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	if acct.Name != "" {
		orig.Name = acct.Name
	}
	if acct.Phone != "" && acct.Phone != orig.Phone {
		// a new number must be verified again
		orig.Phone = acct.Phone
		orig.PhoneVerified = acct.PhoneVerified
	} else if acct.PhoneVerified {
		orig.PhoneVerified = true
	}
	if acct.Email != "" {
		orig.Email = acct.Email
	}
	if !acct.UpdatedAt.IsZero() {
		orig.UpdatedAt = acct.UpdatedAt
	}
	if !acct.LastLogin.IsZero() {
		orig.LastLogin = acct.LastLogin
	}

	repo.db.table[acct.ID] = orig
	return *orig, nil
}

func (repo *accountRepository) DeleteAccountsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func isExcluded(acct account.Account, excluded []account.Account, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excluded[i].ID >= acct.ID })
	return idx < n && excluded[idx].ID == acct.ID
}
