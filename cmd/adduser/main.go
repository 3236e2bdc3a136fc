// Command adduser creates a login account and its empty ledger directly in
// the configured record store.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/boddenberg/finledger-go/internal/config"
	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/backend"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	storeBackend := fs.String("backend", cfg.StoreBackend, "Record store: sqlite or mongo")
	dbPath := fs.String("db", cfg.SQLitePath, "SQLite database file")
	mongoURI := fs.String("mongo-uri", cfg.MongoURI, "MongoDB connection URI")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-password <password>] [-backend sqlite|mongo] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	cfg.StoreBackend = *storeBackend
	cfg.SQLitePath = *dbPath
	cfg.MongoURI = *mongoURI
	if cfg.StoreBackend == config.BackendMemory {
		return fmt.Errorf("the memory backend does not persist accounts; use -backend sqlite or mongo")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := zap.NewNop()
	store, err := backend.Open(ctx, cfg, observability.NewMetrics(), logger)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer store.Close(context.Background())

	auth := service.NewAuthService(store, store, cfg.JWTSecret, cfg.JWTTTL, cfg.BcryptCost, logger)
	if err := auth.CreateAccount(ctx, strings.TrimSpace(*username), password); err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			return fmt.Errorf("user %s already exists", *username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully\n", *username)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
