package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/jkimani/karo/core/account"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

type accountRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Phone         string         `db:"phone"`
	Email         string         `db:"email"`
	IsActive      bool           `db:"is_active"`
	PhoneVerified bool           `db:"phone_verified"`
	Roles         pq.StringArray `db:"roles"`
	PasswordHash  []byte         `db:"password_hash"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastLogin     null.Time      `db:"last_login"`
}

func (row accountRow) account() account.Account {
	return account.Account{
		ID:            row.ID,
		Name:          row.Name,
		Phone:         row.Phone,
		Email:         row.Email,
		IsActive:      row.IsActive,
		PhoneVerified: row.PhoneVerified,
		Roles:         row.Roles,
		PasswordHash:  row.PasswordHash,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		LastLogin:     row.LastLogin.Time,
	}
}

func accounts(rows []accountRow) []account.Account {
	accts := make([]account.Account, len(rows))
	for i, row := range rows {
		accts[i] = row.account()
	}
	return accts
}

const accountCols = `id, name, phone, email, is_active, phone_verified, roles, password_hash, created_at, updated_at, last_login`

func (repo *accountRepository) CheckUniqueness(phone, email string, excluded ...account.Account) error {
	q := `SELECT phone, email FROM account WHERE ((phone = ? AND phone <> '') OR (email = ? AND email <> ''))`
	args := []interface{}{phone, email}

	if len(excluded) > 0 {
		ids := make([]string, len(excluded))
		for i, acct := range excluded {
			ids[i] = acct.ID
		}
		var err error
		q, args, err = sqlx.In(q+` AND id NOT IN (?)`, phone, email, ids)
		if err != nil {
			return dbErr(err, "checking uniqueness")
		}
	}

	var rows []struct {
		Phone string `db:"phone"`
		Email string `db:"email"`
	}
	if err := repo.db.Select(&rows, repo.db.Rebind(q), args...); err != nil {
		return dbErr(err, "checking uniqueness")
	}
	for _, row := range rows {
		if phone != "" && row.Phone == phone {
			return account.ErrPhoneExists
		}
		if email != "" && row.Email == email {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(acct account.Account) (account.Account, error) {
	q := `
		INSERT INTO account (` + accountCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.db.Exec(q,
		acct.ID, acct.Name, acct.Phone, acct.Email, acct.IsActive, acct.PhoneVerified,
		pq.StringArray(acct.Roles), acct.PasswordHash, acct.CreatedAt, acct.UpdatedAt,
		null.NewTime(acct.LastLogin, !acct.LastLogin.IsZero()),
	)
	if err != nil {
		return account.Account{}, dbErr(err, "creating account")
	}
	return acct, nil
}

func (repo *accountRepository) QueryAllAccounts() ([]account.Account, error) {
	var rows []accountRow
	q := `SELECT ` + accountCols + ` FROM account ORDER BY created_at`
	if err := repo.db.Select(&rows, q); err != nil {
		return nil, dbErr(err, "querying accounts")
	}
	return accounts(rows), nil
}

func (repo *accountRepository) get(q string, args ...interface{}) (account.Account, error) {
	var row accountRow
	if err := repo.db.Get(&row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, dbErr(err, "getting account")
	}
	return row.account(), nil
}

func (repo *accountRepository) GetAccountByID(id string) (account.Account, error) {
	return repo.get(`SELECT `+accountCols+` FROM account WHERE id = $1`, id)
}

func (repo *accountRepository) GetAccountByPhone(phone string) (account.Account, error) {
	return repo.get(`SELECT `+accountCols+` FROM account WHERE phone = $1 AND phone <> ''`, phone)
}

func (repo *accountRepository) GetAccountByEmail(email string) (account.Account, error) {
	return repo.get(`SELECT `+accountCols+` FROM account WHERE email = $1 AND email <> ''`, email)
}

func (repo *accountRepository) GetAccountByPhoneOrEmail(identity string) (account.Account, error) {
	q := `SELECT ` + accountCols + ` FROM account
		WHERE (phone = $1 AND phone <> '') OR (email = $1 AND email <> '')`
	return repo.get(q, identity)
}

func (repo *accountRepository) FilterAccounts(filter account.QueryFilter) ([]account.Account, error) {
	q := `SELECT ` + accountCols + ` FROM account WHERE true`
	var args []interface{}

	if filter.Search != "" {
		q += ` AND (name ILIKE ? OR phone ILIKE ? OR email ILIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		q += ` AND EXISTS (SELECT 1 FROM unnest(roles) AS r WHERE `
		for i, role := range filter.Roles {
			if i > 0 {
				q += ` OR `
			}
			q += `r LIKE ?`
			args = append(args, role+"%")
		}
		q += `)`
	}
	if filter.IsActive != nil {
		q += ` AND is_active = ?`
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ?`
		args = append(args, filter.CreatedTo.UTC())
	}
	q += ` ORDER BY created_at`

	var rows []accountRow
	if err := repo.db.Select(&rows, repo.db.Rebind(q), args...); err != nil {
		return nil, dbErr(err, "filtering accounts")
	}
	return accounts(rows), nil
}

func (repo *accountRepository) UpdateAccount(acct account.Account, isActive *bool) (account.Account, error) {
	// only set fields carrying a value; the rest keep their stored value
	q := `
		UPDATE account SET
			name = COALESCE(NULLIF($2, ''), name),
			phone = COALESCE(NULLIF($3, ''), phone),
			email = COALESCE(NULLIF($4, ''), email),
			roles = COALESCE($5, roles),
			password_hash = COALESCE($6, password_hash),
			is_active = COALESCE($7, is_active),
			phone_verified = CASE
				WHEN NULLIF($3, '') IS NOT NULL AND $3 <> phone THEN $8
				ELSE phone_verified OR $8
			END,
			updated_at = COALESCE($9, updated_at),
			last_login = COALESCE($10, last_login)
		WHERE id = $1
		RETURNING ` + accountCols
	var roles interface{}
	if acct.Roles != nil {
		roles = pq.StringArray(acct.Roles)
	}
	var row accountRow
	err := repo.db.Get(&row, q,
		acct.ID, acct.Name, acct.Phone, acct.Email, roles, acct.PasswordHash, isActive,
		acct.PhoneVerified,
		null.NewTime(acct.UpdatedAt, !acct.UpdatedAt.IsZero()),
		null.NewTime(acct.LastLogin, !acct.LastLogin.IsZero()),
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, dbErr(err, "updating account")
	}
	return row.account(), nil
}

func (repo *accountRepository) DeleteAccountsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM account WHERE id IN (?)`, ids)
	if err != nil {
		return dbErr(err, "deleting accounts")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return dbErr(err, "deleting accounts")
	}
	return nil
}
