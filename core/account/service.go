package account

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jkimani/karo/core"
	"github.com/jkimani/karo/core/otp"
)

var (
	// errors
	ErrNotFound    = errors.New("account not found")
	ErrEmailExists = errors.New("an account with this email already exists")
	ErrPhoneExists = errors.New("an account with this phone number already exists")
	ErrInvalidOTP  = errors.New("invalid or expired code")
)

type (
	Repository interface {
		CheckUniqueness(phone, email string, excluded ...Account) error
		CreateAccount(acct Account) (Account, error)
		QueryAllAccounts() ([]Account, error)
		GetAccountByID(id string) (Account, error)
		GetAccountByPhone(phone string) (Account, error)
		GetAccountByEmail(email string) (Account, error)
		// GetAccountByPhoneOrEmail matches identity against either field.
		GetAccountByPhoneOrEmail(identity string) (Account, error)
		// FilterAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Account.Name,
		// Account.Phone or Account.Email.
		FilterAccounts(filter QueryFilter) ([]Account, error)
		UpdateAccount(acct Account, isActive *bool) (Account, error)
		DeleteAccountsByID(ids ...string) error
	}

	Service struct {
		repo    Repository
		otpSvc  *otp.Service
		mailSvc core.EmailService
		smsSvc  core.SMSService
	}
)

func NewService(repo Repository, otpSvc *otp.Service, mailSvc core.EmailService, smsSvc core.SMSService) *Service {
	return &Service{
		repo:    repo,
		otpSvc:  otpSvc,
		mailSvc: mailSvc,
		smsSvc:  smsSvc,
	}
}

func (svc *Service) checkUniqueness(phone, email string, excl ...Account) error {
	if err := svc.repo.CheckUniqueness(phone, email, excl...); err != nil {
		var field string
		switch err {
		case ErrPhoneExists:
			field = "phone"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(na NewAccount) (Account, error) {
	now := time.Now().UTC()
	acct := Account{
		ID:        uuid.New().String(),
		Name:      na.Name,
		Phone:     na.Phone,
		Email:     na.Email,
		IsActive:  true,
		Roles:     na.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, err
	}
	acct, err := svc.repo.CreateAccount(acct)
	if err != nil {
		return Account{}, err
	}
	svc.sendWelcome(acct)
	return acct, nil
}

func (svc *Service) sendWelcome(acct Account) {
	if acct.Phone != "" && svc.smsSvc != nil {
		svc.smsSvc.SendMessages(&core.SMSMessage{
			To: acct.Phone,
			Body: fmt.Sprintf("Karibu %s! Your account is ready. Sign in at %s",
				core.Conf.AppName, core.Conf.FrontendBaseURL),
		})
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Welcome to " + core.Conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{acct.Name},
	})
}

func (svc *Service) QueryAll() ([]Account, error) {
	return svc.repo.QueryAllAccounts()
}

func (svc *Service) GetByID(id string) (Account, error) {
	return svc.repo.GetAccountByID(id)
}

func (svc *Service) GetByPhone(phone string) (Account, error) {
	return svc.repo.GetAccountByPhone(core.CleanString(phone))
}

func (svc *Service) GetByEmail(email string) (Account, error) {
	return svc.repo.GetAccountByEmail(core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByPhoneOrEmail(identity string) (Account, error) {
	return svc.repo.GetAccountByPhoneOrEmail(core.CleanString(identity, true /* lower */))
}

func (svc *Service) Filter(filter QueryFilter) ([]Account, error) {
	return svc.repo.FilterAccounts(filter)
}

func (svc *Service) Update(id string, ua UpdateAccount) (Account, error) {
	acct := Account{
		ID:        id,
		Name:      ua.Name,
		Phone:     ua.Phone,
		Email:     ua.Email,
		Roles:     ua.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if ua.Password != "" {
		if err := acct.SetPassword(ua.Password); err != nil {
			return Account{}, err
		}
	}
	return svc.repo.UpdateAccount(acct, ua.IsActive)
}

func (svc *Service) SetLastLogin(acct Account) (Account, error) {
	acct.LastLogin = time.Now().UTC()
	return svc.repo.UpdateAccount(acct, nil)
}

func (svc *Service) Delete(ids ...string) error {
	return svc.repo.DeleteAccountsByID(ids...)
}

// RequestPasswordReset issues a one-time code for the account matching identity
// and delivers it by SMS (phone identities) or email. Returns ErrNotFound when
// no account matches; callers answer uniformly regardless, to avoid leaking
// which identities exist.
func (svc *Service) RequestPasswordReset(identity string) error {
	acct, err := svc.repo.GetAccountByPhoneOrEmail(core.CleanString(identity, true /* lower */))
	if err != nil {
		return err
	}
	return svc.issueAndDeliver(acct, "password reset")
}

// ConfirmPasswordReset verifies the one-time code and sets the new password.
func (svc *Service) ConfirmPasswordReset(rp ResetPassword) (Account, error) {
	acct, err := svc.repo.GetAccountByPhoneOrEmail(core.CleanString(rp.Identity, true /* lower */))
	if err != nil {
		return Account{}, err
	}
	if !svc.otpSvc.Verify(acct.OTPIdentity(), rp.Code) {
		return Account{}, core.NewValidationError(ErrInvalidOTP, core.FieldError{Field: "code", Error: ErrInvalidOTP.Error()})
	}
	if err := acct.SetPassword(rp.Password); err != nil {
		return Account{}, err
	}
	acct.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAccount(acct, nil)
}

// RequestPhoneVerification issues a one-time code to the account's phone.
func (svc *Service) RequestPhoneVerification(id string) error {
	acct, err := svc.repo.GetAccountByID(id)
	if err != nil {
		return err
	}
	if acct.Phone == "" {
		return core.NewValidationError(errors.New("account has no phone number"),
			core.FieldError{Field: "phone", Error: "no phone number on record"})
	}
	return svc.issueAndDeliver(acct, "phone verification")
}

// VerifyPhone consumes a verification code and marks the phone verified.
func (svc *Service) VerifyPhone(id, code string) (Account, error) {
	acct, err := svc.repo.GetAccountByID(id)
	if err != nil {
		return Account{}, err
	}
	if !svc.otpSvc.Verify(acct.Phone, code) {
		return Account{}, core.NewValidationError(ErrInvalidOTP, core.FieldError{Field: "code", Error: ErrInvalidOTP.Error()})
	}
	acct.PhoneVerified = true
	acct.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAccount(acct, nil)
}

func (svc *Service) issueAndDeliver(acct Account, purpose string) error {
	code, err := svc.otpSvc.Issue(acct.OTPIdentity(), core.Conf.OTPExpiry)
	if err != nil {
		return errors.Wrap(err, "issuing code")
	}

	expiryMins := int(core.Conf.OTPExpiry.Minutes())
	if acct.Phone != "" && svc.smsSvc != nil {
		svc.smsSvc.SendMessages(&core.SMSMessage{
			To: acct.Phone,
			Body: fmt.Sprintf("%s: your %s code is %s. It expires in %d minutes.",
				core.Conf.AppName, purpose, code, expiryMins),
		})
		return nil
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Your " + purpose + " code",
		TemplateName: "otp",
		TemplateData: struct {
			Name       string
			Purpose    string
			Code       string
			ExpiryMins int
		}{acct.Name, purpose, code, expiryMins},
	})
	return nil
}
