package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/getsentry/sentry-go"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/jrsteele09/go-magic-auth/auth"
	"github.com/jrsteele09/go-magic-auth/email"
	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/internal/migrations"
	"github.com/jrsteele09/go-magic-auth/server"
	"github.com/jrsteele09/go-magic-auth/sessions"
	"github.com/jrsteele09/go-magic-auth/token"
	"github.com/jrsteele09/go-magic-auth/users"
)

func main() {
	_ = godotenv.Load()

	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	if dsn := c.GetSentryDSN(); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Environment: c.GetEnv()}); err != nil {
			return fmt.Errorf("sentry.Init: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	repos, closeStorage, err := buildRepos(c)
	if err != nil {
		return err
	}
	defer closeStorage()

	signer := token.NewHMACSigner(c.GetJWTSecret())
	factory := token.NewFactory(signer, c)
	sender := email.NewSMTPSender(c)

	authService, err := auth.NewService(repos, factory, sender, c)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	srv, err := server.New(c, authService, factory)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// buildRepos selects the storage backend: Postgres when DATABASE_URL is
// configured (running migrations first), in-memory otherwise.
func buildRepos(c config.Config) (auth.Repos, func(), error) {
	databaseURL := c.GetDatabaseURL()
	if databaseURL == "" {
		log.Printf("No DATABASE_URL configured, using in-memory storage\n")
		return auth.Repos{
			Users:    users.NewInMemoryUserRepo(),
			Sessions: sessions.NewInMemoryRepo(),
		}, func() {}, nil
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return auth.Repos{}, nil, fmt.Errorf("sql.Open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return auth.Repos{}, nil, fmt.Errorf("migrations.Run: %w", err)
	}

	return auth.Repos{
		Users:    users.NewPostgresUserRepo(db),
		Sessions: sessions.NewPostgresRepo(db),
	}, func() { _ = db.Close() }, nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
