package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/jkimani/karo/core/account"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	acctRepo account.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run a database migration command (up, down, status, ...)")
	fmt.Println("  addaccount -name NAME [-phone PHONE] [-email EMAIL] [-admin] - create or update an account; the password is prompted next")
	fmt.Println("  checkschedule [-file PATH] - validate the fee schedule seed file")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAccountCmd := flag.NewFlagSet("addaccount", flag.ExitOnError)
	addAccountName := addAccountCmd.String("name", "", "The account holder's full name.")
	addAccountPhone := addAccountCmd.String("phone", "", "The account's phone number (+254 format).")
	addAccountEmail := addAccountCmd.String("email", "", "The account's email address.")
	addAccountAdmin := addAccountCmd.Bool("admin", false, "Grant all roles.")

	checkScheduleCmd := flag.NewFlagSet("checkschedule", flag.ExitOnError)
	checkScheduleFile := checkScheduleCmd.String("file", "", "Path to the fee schedule seed file. Defaults to config/fee_schedule.yml.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addaccount":
		if err := addAccountCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAccountName == "" || (*addAccountPhone == "" && *addAccountEmail == "") {
			addAccountCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addAccountCmd.Usage()
			return errHelp
		}
		return cli.addAccount(*addAccountName, *addAccountPhone, *addAccountEmail, string(pwd), *addAccountAdmin)
	case "checkschedule":
		if err := checkScheduleCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.checkSchedule(*checkScheduleFile)
	default:
		cli.printUsage()
		return errHelp
	}
}
