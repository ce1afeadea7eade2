package echoapi

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkimani/karo/core"
	"github.com/jkimani/karo/core/account"
	"github.com/jkimani/karo/core/fees"
	"github.com/jkimani/karo/core/otp"
	dummymail "github.com/jkimani/karo/services/email/dummy"
	logsvc "github.com/jkimani/karo/services/logger"
	dummysms "github.com/jkimani/karo/services/sms/dummy"
	dummydb "github.com/jkimani/karo/storage/database/dummy"
	scheduleseed "github.com/jkimani/karo/storage/schedule"
)

type testEnv struct {
	server   *Server
	acctSvc  *account.Service
	feesSvc  *fees.Service
	acctRepo account.Repository
	ledger   fees.LedgerRepository
	otpSvc   *otp.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	dummymail.Reset()
	dummysms.Reset()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	acctRepo := dummydb.NewAccountRepository(db)
	ledger := dummydb.NewLedgerRepository(db)

	schedule, err := scheduleseed.Load(filepath.Join(core.Conf.WorkDir, "config", "fee_schedule.yml"))
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	otpSvc := otp.NewService(otp.NewMemoryRepository(), core.Conf)
	acctSvc := account.NewService(acctRepo, otpSvc, dummymail.NewService(), dummysms.NewService())
	feesSvc := fees.NewService(schedule, ledger)

	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	server := NewServer(ServerDeps{
		Logger:         logger,
		AccountSvc:     acctSvc,
		FeesSvc:        feesSvc,
		DisableReqLogs: true,
	})

	return &testEnv{
		server:   server,
		acctSvc:  acctSvc,
		feesSvc:  feesSvc,
		acctRepo: acctRepo,
		ledger:   ledger,
		otpSvc:   otpSvc,
	}
}

func (env *testEnv) request(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func createAccount(
	t *testing.T,
	repo account.Repository,
	name, phone, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) account.Account {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acct := account.Account{
		ID:        uuid.New().String(),
		Name:      name,
		Phone:     phone,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := acct.SetPassword(pwd); err != nil {
			t.Fatalf("createAccount() failed: %v", err)
		}
	}
	acct, err := repo.CreateAccount(acct)
	if err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	return acct
}

func getToken(t *testing.T, acct account.Account) string {
	claims := GetAccountClaims(acct)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

