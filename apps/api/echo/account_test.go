package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkimani/karo/core/account"
	dummymail "github.com/jkimani/karo/services/email/dummy"
	dummysms "github.com/jkimani/karo/services/sms/dummy"
)

var otpCodeRegex = regexp.MustCompile(`\d{6}`)

func lastSMSCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, dummysms.SentMessages, "no SMS was sent")
	msg := dummysms.SentMessages[len(dummysms.SentMessages)-1]
	code := otpCodeRegex.FindString(msg.Body)
	require.Len(t, code, 6, "no code found in SMS body: %q", msg.Body)
	return code
}

func lastEmailCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, dummymail.SentMessages, "no email was sent")
	msg := dummymail.SentMessages[len(dummymail.SentMessages)-1]
	code := otpCodeRegex.FindString(msg.TextContent)
	require.Len(t, code, 6, "no code found in email body")
	return code
}

func loginBody(identity, pwd string) []byte {
	return []byte(fmt.Sprintf(`{"identity": %q, "password": %q}`, identity, pwd))
}

func Test_accountApi_login(t *testing.T) {
	env := setup(t)
	createAccount(t, env.acctRepo, "Wanjiru Kamau", "+254712000001", "wanjiru@karo.test",
		"J4mb0#Secure", account.ParentRoles, true)
	createAccount(t, env.acctRepo, "Dormant Bursar", "+254712000002", "",
		"J4mb0#Secure", account.BursarRoles, false)

	tests := []struct {
		name     string
		body     []byte
		wantCode int
	}{
		{name: "by phone", body: loginBody("+254712000001", "J4mb0#Secure"), wantCode: http.StatusOK},
		{name: "by email", body: loginBody("wanjiru@karo.test", "J4mb0#Secure"), wantCode: http.StatusOK},
		{name: "email case-insensitive", body: loginBody("Wanjiru@Karo.Test", "J4mb0#Secure"), wantCode: http.StatusOK},
		{name: "wrong password", body: loginBody("+254712000001", "not-the-password"), wantCode: http.StatusBadRequest},
		{name: "unknown identity", body: loginBody("nobody@karo.test", "J4mb0#Secure"), wantCode: http.StatusBadRequest},
		{name: "deactivated account", body: loginBody("+254712000002", "J4mb0#Secure"), wantCode: http.StatusForbidden},
		{name: "missing password", body: []byte(`{"identity": "+254712000001"}`), wantCode: http.StatusBadRequest},
		{name: "empty body", body: []byte(`{}`), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.request(http.MethodPost, "/v1/auth/login", "", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Token)
		})
	}

	t.Run("lastLogin is set", func(t *testing.T) {
		acct, err := env.acctSvc.GetByPhone("+254712000001")
		require.NoError(t, err)
		assert.False(t, acct.LastLogin.IsZero())
	})
}

func Test_accountApi_refreshToken(t *testing.T) {
	env := setup(t)
	acct := createAccount(t, env.acctRepo, "Wanjiru Kamau", "+254712000001", "",
		"J4mb0#Secure", account.ParentRoles, true)
	token := getToken(t, acct)

	t.Run("no token", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/token-refresh", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	})

	t.Run("ok", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/token-refresh", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("deactivated since issuance", func(t *testing.T) {
		inactive := false
		_, err := env.acctRepo.UpdateAccount(account.Account{ID: acct.ID}, &inactive)
		require.NoError(t, err)

		rec := env.request(http.MethodPost, "/v1/auth/token-refresh", token)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})
}

func Test_accountApi_passwordReset(t *testing.T) {
	env := setup(t)
	createAccount(t, env.acctRepo, "Wanjiru Kamau", "+254712000001", "wanjiru@karo.test",
		"J4mb0#Secure", account.ParentRoles, true)
	createAccount(t, env.acctRepo, "Otieno Ouma", "", "otieno@karo.test",
		"J4mb0#Secure", account.BursarRoles, true)

	resetBody := func(identity, code, pwd string) []byte {
		return []byte(fmt.Sprintf(
			`{"identity": %q, "code": %q, "password": %q, "password_confirm": %q}`,
			identity, code, pwd, pwd))
	}

	t.Run("unknown identity still succeeds", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/password-reset", "", []byte(`{"identity": "nobody@karo.test"}`))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, dummysms.SentMessages)
		assert.Empty(t, dummymail.SentMessages)
	})

	t.Run("phone account, full flow", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/password-reset", "", []byte(`{"identity": "+254712000001"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		code := lastSMSCode(t)
		assert.Equal(t, "+254712000001", dummysms.SentMessages[len(dummysms.SentMessages)-1].To)

		// wrong code
		rec = env.request(http.MethodPost, "/v1/auth/password-reset-confirm", "",
			resetBody("+254712000001", "000000", "N3w!Passw0rd"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		// weak password is rejected, code not yet consumed at validation stage
		rec = env.request(http.MethodPost, "/v1/auth/password-reset-confirm", "",
			resetBody("+254712000001", code, "password"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		// correct code and a strong password
		rec = env.request(http.MethodPost, "/v1/auth/password-reset-confirm", "",
			resetBody("+254712000001", code, "N3w!Passw0rd"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// code is single-use
		rec = env.request(http.MethodPost, "/v1/auth/password-reset-confirm", "",
			resetBody("+254712000001", code, "An0ther!Pwd9"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		// old password no longer works, new one does
		rec = env.request(http.MethodPost, "/v1/auth/login", "", loginBody("+254712000001", "J4mb0#Secure"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		rec = env.request(http.MethodPost, "/v1/auth/login", "", loginBody("+254712000001", "N3w!Passw0rd"))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("email-only account gets the code by email", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/password-reset", "", []byte(`{"identity": "otieno@karo.test"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		code := lastEmailCode(t)

		rec = env.request(http.MethodPost, "/v1/auth/password-reset-confirm", "",
			resetBody("otieno@karo.test", code, "N3w!Passw0rd"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.request(http.MethodPost, "/v1/auth/login", "", loginBody("otieno@karo.test", "N3w!Passw0rd"))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("malformed confirmations", func(t *testing.T) {
		tests := []struct {
			name string
			body []byte
		}{
			{name: "missing code", body: []byte(`{"identity": "+254712000001", "password": "N3w!Passw0rd", "password_confirm": "N3w!Passw0rd"}`)},
			{name: "short code", body: resetBody("+254712000001", "123", "N3w!Passw0rd")},
			{name: "non-numeric code", body: resetBody("+254712000001", "abc123", "N3w!Passw0rd")},
			{name: "password mismatch", body: []byte(`{"identity": "+254712000001", "code": "123456", "password": "N3w!Passw0rd", "password_confirm": "0ther!Passwd"}`)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.request(http.MethodPost, "/v1/auth/password-reset-confirm", "", tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			})
		}
	})
}

func Test_accountApi_phoneVerification(t *testing.T) {
	env := setup(t)
	acct := createAccount(t, env.acctRepo, "Wanjiru Kamau", "+254712000001", "",
		"J4mb0#Secure", account.ParentRoles, true)
	noPhone := createAccount(t, env.acctRepo, "Otieno Ouma", "", "otieno@karo.test",
		"J4mb0#Secure", account.BursarRoles, true)
	token := getToken(t, acct)

	t.Run("request requires auth", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/phone/verify-request", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	})

	t.Run("account without phone", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/phone/verify-request", getToken(t, noPhone))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("full flow", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/phone/verify-request", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		code := lastSMSCode(t)

		rec = env.request(http.MethodPost, "/v1/auth/phone/verify", token, []byte(`{"code": "000000"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		rec = env.request(http.MethodPost, "/v1/auth/phone/verify", token, []byte(fmt.Sprintf(`{"code": %q}`, code)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var verified account.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
		assert.True(t, verified.PhoneVerified)

		// code is single-use
		rec = env.request(http.MethodPost, "/v1/auth/phone/verify", token, []byte(fmt.Sprintf(`{"code": %q}`, code)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func Test_accountApi_management(t *testing.T) {
	env := setup(t)
	admin := createAccount(t, env.acctRepo, "School Admin", "+254712000010", "admin@karo.test",
		"J4mb0#Secure", account.AdminRoles[:1], true)
	bursar := createAccount(t, env.acctRepo, "School Bursar", "+254712000011", "",
		"J4mb0#Secure", account.BursarRoles, true)
	parent := createAccount(t, env.acctRepo, "Wanjiru Kamau", "+254712000012", "",
		"J4mb0#Secure", account.ParentRoles, true)

	adminToken := getToken(t, admin)
	bursarToken := getToken(t, bursar)
	parentToken := getToken(t, parent)

	newAcctBody := func(name, phone string, roles []string) []byte {
		return marshallObj(t, account.NewAccount{
			Name:            name,
			Phone:           phone,
			Password:        "J4mb0#Secure",
			PasswordConfirm: "J4mb0#Secure",
			Roles:           roles,
		})
	}

	t.Run("query is admin only", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			wantCode int
		}{
			{name: "no token", token: "", wantCode: http.StatusUnauthorized},
			{name: "parent", token: parentToken, wantCode: http.StatusForbidden},
			{name: "bursar", token: bursarToken, wantCode: http.StatusForbidden},
			{name: "admin", token: adminToken, wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.request(http.MethodGet, "/v1/accounts", tt.token)
				require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				if tt.wantCode != http.StatusOK {
					return
				}
				var accts []account.Account
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accts))
				assert.Len(t, accts, 3)
			})
		}
	})

	t.Run("query filters by role and search", func(t *testing.T) {
		rec := env.request(http.MethodGet, "/v1/accounts?role=bursar%3A", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var accts []account.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accts))
		require.Len(t, accts, 1)
		assert.Equal(t, bursar.ID, accts[0].ID)

		rec = env.request(http.MethodGet, "/v1/accounts?search=wanjiru", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		accts = nil
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accts))
		require.Len(t, accts, 1)
		assert.Equal(t, parent.ID, accts[0].ID)
	})

	t.Run("create", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/accounts", parentToken,
			newAcctBody("New Bursar", "+254712000013", account.BursarRoles))
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		rec = env.request(http.MethodPost, "/v1/accounts", adminToken,
			newAcctBody("New Bursar", "+254712000013", account.BursarRoles))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var acct account.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
		assert.True(t, acct.IsActive)
		assert.Equal(t, account.BursarRoles, acct.Roles)

		// duplicate phone
		rec = env.request(http.MethodPost, "/v1/accounts", adminToken,
			newAcctBody("Dup Bursar", "+254712000013", account.BursarRoles))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		// plain admin cannot mint an owner
		rec = env.request(http.MethodPost, "/v1/accounts", adminToken,
			newAcctBody("Usurper", "+254712000014", []string{account.RoleAdminOwner}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), errNoPermsToSetRoles)

		// weak password
		weak := []byte(`{"name": "Weak", "phone": "+254712000015", "password": "passw", "password_confirm": "passw"}`)
		rec = env.request(http.MethodPost, "/v1/accounts", adminToken, weak)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("roles listing", func(t *testing.T) {
		rec := env.request(http.MethodGet, "/v1/accounts/roles", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var roles []account.Role
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roles))
		assert.Len(t, roles, len(account.Roles))
	})

	t.Run("retrieve", func(t *testing.T) {
		tests := []struct {
			name     string
			path     string
			token    string
			wantCode int
		}{
			{name: "own account", path: "/v1/accounts/" + parent.ID, token: parentToken, wantCode: http.StatusOK},
			{name: "someone else's account", path: "/v1/accounts/" + bursar.ID, token: parentToken, wantCode: http.StatusNotFound},
			{name: "admin reads anyone", path: "/v1/accounts/" + parent.ID, token: adminToken, wantCode: http.StatusOK},
			{name: "unknown id", path: "/v1/accounts/does-not-exist", token: adminToken, wantCode: http.StatusNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.request(http.MethodGet, tt.path, tt.token)
				require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				if tt.wantCode != http.StatusOK {
					return
				}
				var acct account.Account
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
				assert.NotEmpty(t, acct.ID)
				assert.NotContains(t, rec.Body.String(), "password")
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		rec := env.request(http.MethodPut, "/v1/accounts/"+parent.ID, parentToken,
			[]byte(`{"name": "Wanjiru K. Kamau"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var acct account.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
		assert.Equal(t, "Wanjiru K. Kamau", acct.Name)

		// only admin can touch is_active and roles
		rec = env.request(http.MethodPut, "/v1/accounts/"+parent.ID, parentToken,
			[]byte(`{"is_active": false}`))
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
		rec = env.request(http.MethodPut, "/v1/accounts/"+parent.ID, parentToken,
			marshallObj(t, account.UpdateAccount{Roles: account.AdminRoles}))
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		rec = env.request(http.MethodPut, "/v1/accounts/"+parent.ID, adminToken,
			[]byte(`{"is_active": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
		assert.False(t, acct.IsActive)

		// plain admin cannot promote past their own rank
		rec = env.request(http.MethodPut, "/v1/accounts/"+parent.ID, adminToken,
			marshallObj(t, account.UpdateAccount{Roles: []string{account.RoleAdminOwner}}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), errNoPermsToSetRoles)
	})

	t.Run("destroy", func(t *testing.T) {
		// bursar cannot reach someone else's account at all
		rec := env.request(http.MethodDelete, "/v1/accounts/"+parent.ID, bursarToken)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		// nor delete their own
		rec = env.request(http.MethodDelete, "/v1/accounts/"+bursar.ID, bursarToken)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		// admin cannot delete themselves
		rec = env.request(http.MethodDelete, "/v1/accounts/"+admin.ID, adminToken)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
		rec = env.request(http.MethodDelete, "/v1/accounts?id="+admin.ID+"&id="+parent.ID, adminToken)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		rec = env.request(http.MethodDelete, "/v1/accounts/"+parent.ID, adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := env.acctSvc.GetByID(parent.ID)
		assert.Equal(t, account.ErrNotFound, err)

		rec = env.request(http.MethodDelete, "/v1/accounts?id="+bursar.ID, adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err = env.acctSvc.GetByID(bursar.ID)
		assert.Equal(t, account.ErrNotFound, err)
	})
}
