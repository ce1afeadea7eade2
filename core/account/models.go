package account

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jkimani/karo/core"
)

// Roles
const (
	RoleParent = "parent:"

	RoleBursar = "bursar:"

	RoleAdmin          = "admin:"
	RoleAdminPrincipal = "admin:principal"
	RoleAdminOwner     = "admin:owner"
)

var (
	ParentRoles = []string{RoleParent}
	BursarRoles = []string{RoleBursar}
	AdminRoles  = []string{RoleAdmin, RoleAdminPrincipal, RoleAdminOwner}
	AllRoles    = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:     30,
		RoleAdminPrincipal: 29,
		RoleAdmin:          21,

		// Bursars: 20 - 11
		RoleBursar: 11,

		// Parents: 10 - 1
		RoleParent: 1,
	}

	Roles = []Role{
		{Name: "Parent", Value: RoleParent},
		{Name: "Bursar", Value: RoleBursar},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Principal", Value: RoleAdminPrincipal},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, BursarRoles...)
	all = append(all, ParentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Account struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	IsActive      bool      `json:"is_active"`
	PhoneVerified bool      `json:"phone_verified"`
	Roles         []string  `json:"roles"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
	LastLogin     time.Time `json:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// OTPIdentity is the identity one-time codes are keyed and delivered by:
// the phone number when present, the email otherwise.
func (a *Account) OTPIdentity() string {
	if a.Phone != "" {
		return a.Phone
	}
	return a.Email
}

func (a *Account) RoleStartsWith(prefix string) bool {
	for _, role := range a.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (a *Account) IsParent() bool {
	return a.RoleStartsWith(RoleParent)
}

func (a *Account) IsBursar() bool {
	return a.RoleStartsWith(RoleBursar)
}

func (a *Account) IsAdmin() bool {
	return a.RoleStartsWith(RoleAdmin)
}

// NewAccount contains information needed to create a new Account.
type NewAccount struct {
	Name            string   `json:"name" validate:"required"`
	Phone           string   `json:"phone" validate:"omitempty,kephone"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,accountroles"`
}

func (na *NewAccount) Validate(svc *Service) error {
	na.Name = core.CleanString(na.Name)
	na.Phone = core.CleanString(na.Phone)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := core.Validate.Struct(na); err != nil {
		return err
	}
	return svc.checkUniqueness(na.Phone, na.Email)
}

// UpdateAccount defines what information may be provided to modify an existing Account.
type UpdateAccount struct {
	Name            string   `json:"name"`
	Phone           string   `json:"phone" validate:"omitempty,kephone"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,accountroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (ua *UpdateAccount) Validate(orig Account, svc *Service) error {
	name := core.CleanString(ua.Name)
	if name != "" {
		ua.Name = name
	} else {
		ua.Name = orig.Name
	}

	phone := core.CleanString(ua.Phone)
	if phone != "" {
		ua.Phone = phone
	} else {
		ua.Phone = orig.Phone
	}

	email := core.CleanString(ua.Email, true /* lower */)
	if email != "" {
		ua.Email = email
	} else {
		ua.Email = orig.Email
	}

	if err := core.Validate.Struct(ua); err != nil {
		return err
	}
	return svc.checkUniqueness(ua.Phone, ua.Email, orig)
}

// ResetPassword confirms a password reset with the one-time code delivered to
// the account's phone or email.
type ResetPassword struct {
	Identity        string `json:"identity,omitempty" validate:"required"`
	Code            string `json:"code,omitempty" validate:"required,len=6,numeric"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
