package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/jkimani/karo/core/account"
	dummydb "github.com/jkimani/karo/storage/database/dummy"
)

var acctRepo account.Repository

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	acctRepo = dummydb.NewAccountRepository(db)

	return &commandLine{
		acctRepo: acctRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrateRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create requires a NAME argument")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to requires a VERSION argument"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create requires a NAME argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "payment_audit", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addAccount(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addaccount"}, wantErr: errHelp},
		{name: "name but no identity", args: []string{"addaccount", "-name", "Jane Bursar"}, wantErr: errHelp},
		{name: "identity but no password", args: []string{"addaccount", "-name", "Jane Bursar", "-phone", "+254712345678"}, wantErr: errHelp},
		{name: "create bursar", args: []string{"addaccount", "-name", "Jane Bursar", "-phone", "+254712345678"}, extra: extra{pwd: "s3cret"}},
		{name: "create admin", args: []string{"addaccount", "-name", "Head Teacher", "-email", "head@shule.ac.ke", "-admin"}, extra: extra{pwd: "s3cret"}},
		{name: "update existing", args: []string{"addaccount", "-name", "Jane B", "-phone", "+254712345678"}, extra: extra{pwd: "n3w-s3cret"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// the bursar was updated in place, not duplicated
	acct, err := acctRepo.GetAccountByPhone("+254712345678")
	if err != nil {
		t.Fatalf("GetAccountByPhone() failed: %v", err)
	}
	if acct.Name != "Jane B" {
		t.Errorf("addAccount() name = %s, want Jane B", acct.Name)
	}
	if !acct.IsBursar() {
		t.Error("addAccount() expected bursar role")
	}
	if err := acct.CheckPassword("n3w-s3cret"); err != nil {
		t.Error("addAccount() failed to update password")
	}

	admin, err := acctRepo.GetAccountByEmail("head@shule.ac.ke")
	if err != nil {
		t.Fatalf("GetAccountByEmail() failed: %v", err)
	}
	if !admin.IsAdmin() {
		t.Error("addAccount() expected admin roles")
	}
	if bytes.Equal(admin.PasswordHash, acct.PasswordHash) {
		t.Error("addAccount() accounts share a password hash")
	}
}

func Test_commandLine_checkSchedule(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "default seed file", args: []string{"checkschedule"}},
		{name: "missing file", args: []string{"checkschedule", "-file", "nope.yml"}, wantErrStr: "missing"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErrStr != "" {
				if err == nil {
					t.Error("cli.run() expected an error")
				}
				return
			}
			if err != nil {
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}
