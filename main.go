package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fantasygolf/api"
	"fantasygolf/cmd"
	"fantasygolf/config"
	"fantasygolf/database"
	"fantasygolf/events"
	"fantasygolf/models"
	"fantasygolf/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "migrate":
			err = handleMigrationCommand()
		case "grant":
			err = handleGrantCommand()
		case "reconcile":
			err = handleReconcileCommand()
		case "token":
			err = handleTokenCommand()
		default:
			err = fmt.Errorf("unknown command: %s (expected migrate, grant, reconcile or token)", os.Args[1])
		}
		if err != nil {
			log.Fatalf("%s error: %v", os.Args[1], err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: fantasygolf migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// handleGrantCommand credits a wallet with an administrative grant.
// The amount is given in major units, e.g. "25.00".
func handleGrantCommand() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: fantasygolf grant <userID> <amount> [note]")
	}

	userID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("invalid user id %q", os.Args[2])
	}
	amount, err := models.ParseAmount(os.Args[3])
	if err != nil {
		return err
	}
	note := strings.Join(os.Args[4:], " ")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	services, closeDB, err := connectServices(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	metadata := map[string]any{"granted_by": "cli"}
	if note != "" {
		metadata["note"] = note
	}

	tx, err := services.Ledger.Credit(ctx, userID, amount, models.LedgerReasonAdminGrant, "grant:cli:"+uuid.NewString(), metadata)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"userId":     userID,
		"amount":     models.FormatAmount(amount),
		"newBalance": models.FormatAmount(tx.ResultingBalance),
		"note":       note,
	}).Info("Granted funds")
	return nil
}

// handleTokenCommand prints a bearer token for userID signed with JWT_SECRET
func handleTokenCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: fantasygolf token <userID> [admin]")
	}

	userID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("invalid user id %q", os.Args[2])
	}
	admin := len(os.Args) > 3 && os.Args[3] == "admin"

	cfg := config.Get()
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := api.NewAuthenticator(cfg.JWTSecret).IssueToken(userID, admin)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}

// handleReconcileCommand runs one reconciliation sweep and reports what changed
func handleReconcileCommand() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	services, closeDB, err := connectServices(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := services.Status.Reconcile(ctx)
	if err != nil {
		return err
	}

	for _, change := range report.StatusChanges {
		log.WithFields(log.Fields{
			"subject": change.Subject,
			"id":      change.ID,
			"from":    change.From,
			"to":      change.To,
		}).Info("Status changed")
	}
	log.WithFields(log.Fields{
		"skipped":          report.Skipped,
		"tournaments":      report.TournamentsChecked,
		"competitions":     report.CompetitionsChecked,
		"instancesExpired": report.InstancesExpired,
		"stuckPayments":    report.StuckPayments,
		"duration":         report.Duration,
	}).Info("Reconciliation sweep finished")
	return nil
}

// connectServices builds the services for a one-off command. Events raised by
// the command are emitted on a bus with no subscribers.
func connectServices(ctx context.Context) (*cmd.Services, func(), error) {
	cfg := config.Get()
	cmd.ConfigureLogging(cfg.LogLevel, cfg.LogFormat)

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), 2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, events.NewBus())
	return cmd.NewServices(cfg, uowFactory, nil), db.Close, nil
}
