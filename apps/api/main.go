package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/jkimani/karo/apps/api/echo"
	"github.com/jkimani/karo/core"
	"github.com/jkimani/karo/core/account"
	"github.com/jkimani/karo/core/fees"
	"github.com/jkimani/karo/core/otp"
	emailsvc "github.com/jkimani/karo/services/email"
	logsvc "github.com/jkimani/karo/services/logger"
	smssvc "github.com/jkimani/karo/services/sms"
	"github.com/jkimani/karo/storage/database"
	sqlxrepos "github.com/jkimani/karo/storage/database/sqlx"
	scheduleseed "github.com/jkimani/karo/storage/schedule"
)

func main() {
	conf := core.Conf

	// =========================================================================
	// Set up Dependencies

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()
	sdb := sqlx.NewDb(db, conf.Database.Engine)

	// load fee reference data
	scheduleRepo, err := scheduleseed.Load(filepath.Join(conf.WorkDir, "config", "fee_schedule.yml"))
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading fee schedule: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	var smsSvc core.SMSService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
		smsSvc = smssvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
		smsSvc = smssvc.NewGatewayService(conf.SMSGatewayURL, conf.SMSGatewayUser, conf.SMSGatewayKey, logger)
	}

	otpSvc := otp.NewService(otp.NewMemoryRepository(), conf)
	acctSvc := account.NewService(sqlxrepos.NewAccountRepository(sdb), otpSvc, mailSvc, smsSvc)
	feesSvc := fees.NewService(scheduleRepo, sqlxrepos.NewLedgerRepository(sdb))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// sweep consumed-by-expiry codes in the background
	go func() {
		t := time.NewTicker(conf.OTPExpiry)
		defer t.Stop()
		for range t.C {
			if n := otpSvc.SweepExpired(); n > 0 {
				logger.Debug(fmt.Sprintf("swept %d expired one-time codes", n))
			}
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Logger:     logger,
		AccountSvc: acctSvc,
		FeesSvc:    feesSvc,
	})
	server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
