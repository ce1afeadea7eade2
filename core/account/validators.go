package account

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/jkimani/karo/core"
)

var (
	accountRolesTag  = "accountroles"
	accountRolesText = "invalid roles"

	phoneOrEmailTag  = "phone_or_email"
	phoneOrEmailText = "one of phone or email is required"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to account attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"

	// kept sorted for sort.SearchStrings
	commonPasswords = []string{
		"000000", "111111", "121212", "123123", "123321", "1234", "12345",
		"123456", "1234567", "12345678", "123456789", "1234567890", "654321",
		"666666", "696969", "abc123", "access", "admin", "baseball", "batman",
		"dragon", "football", "iloveyou", "karibu", "letmein", "login",
		"master", "monkey", "mustang", "nairobi", "passw0rd", "password",
		"password1", "qwerty", "qwertyuiop", "safari", "shadow", "starwars",
		"sunshine", "superman", "trustno1", "welcome", "zaq12wsx",
	}
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(accountRolesTag, accountRolesValidation)
	core.RegisterCustomTranslation(accountRolesTag, accountRolesText)

	core.Validate.RegisterStructValidation(accountStructValidation, NewAccount{})
	core.Validate.RegisterStructValidation(accountStructValidation, UpdateAccount{})
	core.Validate.RegisterStructValidation(resetPasswordStructValidation, ResetPassword{})
	core.RegisterCustomTranslation(phoneOrEmailTag, phoneOrEmailText)
	core.RegisterCustomTranslation(pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(pwdNoCommonTag, pwdNoCommonText)
}

// accountRolesValidation checks that all roles are known.
func accountRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		var known bool
		for _, r := range AllRoles {
			if role == r {
				known = true
				break
			}
		}
		if !known {
			return false
		}
	}
	return true
}

// accountStructValidation runs the cross-field checks on NewAccount and
// UpdateAccount: at least one of phone/email, and the password policy.
func accountStructValidation(sl validator.StructLevel) {
	var phone, email, name, pwd string
	switch obj := sl.Current().Interface().(type) {
	case NewAccount:
		phone, email, name, pwd = obj.Phone, obj.Email, obj.Name, obj.Password
	case UpdateAccount:
		phone, email, name, pwd = obj.Phone, obj.Email, obj.Name, obj.Password
		if pwd == "" {
			// password unchanged; nothing more to check
			if phone == "" && email == "" {
				sl.ReportError(phone, "phone", "Phone", phoneOrEmailTag, "")
			}
			return
		}
	default:
		return
	}

	if phone == "" && email == "" {
		sl.ReportError(phone, "phone", "Phone", phoneOrEmailTag, "")
	}

	validatePassword(sl, pwd, name, phone, email)
}

// resetPasswordStructValidation applies the password policy to reset
// confirmations. The identity (phone or email) stands in for the account
// attributes in the similarity check.
func resetPasswordStructValidation(sl validator.StructLevel) {
	obj, ok := sl.Current().Interface().(ResetPassword)
	if !ok || obj.Password == "" {
		return
	}
	validatePassword(sl, obj.Password, "", "", obj.Identity)
}

func validatePassword(sl validator.StructLevel, pwd, name, phone, email string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	// - min length
	pwdLen := utf8.RuneCountInString(pwd)
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var digitCount int
	var hasUpper, hasLower, hasDig, hasSpecial bool
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	// - complexity: 1 upper, 1 lower, 1 digit & 1 special
	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		reportErr(pwdComplexityTag)
		return
	}

	// - no account attrs similarity
	getRatio := func(pass, attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(attr, "")).QuickRatio()
	}
	if getRatio(pwd, name) >= pwdMaxSim ||
		getRatio(pwd, phone) >= pwdMaxSim ||
		getRatio(pwd, email) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
		return
	}

	// - no common passwords
	lpwd := strings.ToLower(pwd)
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) {
		if match := commonPasswords[idx]; lpwd == match {
			reportErr(pwdNoCommonTag)
			return
		}
	}
}
