package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/library-service/cmd/api/database"
	libraryhttp "github.com/library-service/cmd/api/http"
	"github.com/library-service/cmd/api/inmemory"
	"github.com/library-service/cmd/api/library"
	"github.com/library-service/cmd/api/notifications"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	_ "github.com/lib/pq"
)

func main() {
	err := run()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	var repo library.Repository
	var txer library.TxStarter

	connStr := os.Getenv("DATABASE_URL")
	if connStr != "" {
		//connect to db:
		dbObject, err := database.ConnectDb(connStr)
		if err != nil {
			return fmt.Errorf("connecting with db: %w", err)
		}

		defer dbObject.Close()

		//apply migrations:
		store := database.NewStore(dbObject)
		path := os.Getenv("DATABASE_MIGRATIONS_PATH")
		if path == "" {
			path = "cmd/api/database/migrations"
		}
		err = database.MigrationUp(store, path)
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrating: %w", err)
		}

		repo, txer = store, store
	} else {
		//no database configured, keep everything in memory:
		log.Println("DATABASE_URL not set, using the in memory store.")
		store, err := inmemory.NewInMemoryStore()
		if err != nil {
			return fmt.Errorf("creating in memory store: %w", err)
		}

		repo, txer = store, store
	}

	requestTimeout, err := durationFromEnv("HTTP_REQUEST_TIMEOUT", libraryhttp.RequestTimeout)
	if err != nil {
		return err
	}
	libraryhttp.RequestTimeout = requestTimeout

	notificationsEnabled := os.Getenv("NOTIFICATIONS_ENABLED") == "true"
	notificationsTimeout, err := durationFromEnv("NOTIFICATIONS_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}
	ntfy := notifications.NewNtfy(notificationsEnabled, os.Getenv("NOTIFICATIONS_URL"), nil)

	libraryService := library.NewService(repo, txer, ntfy, notificationsTimeout, time.Now)
	libraryHandler := libraryhttp.NewLibraryHandler(libraryService, languagesFromEnv(), time.Now)

	port, err := intFromEnv("PORT", 8080)
	if err != nil {
		return err
	}

	//create and init http server:
	server := libraryhttp.NewServer(libraryhttp.ServerConfig{Port: port}, libraryHandler)

	go func() (err error) {
		err = server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("unexpected http server error: %w", err)
		}
		return nil
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	ctx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	log.Println("Graceful shutdown complete.")
	return err
}

func languagesFromEnv() libraryhttp.LanguageConfig {
	languages := libraryhttp.LanguageConfig{
		Default:    "en",
		Available:  []string{"en", "es"},
		CookieName: "library_language",
	}
	if fromEnv := os.Getenv("LANGUAGE_DEFAULT"); fromEnv != "" {
		languages.Default = fromEnv
	}
	if fromEnv := os.Getenv("LANGUAGES_AVAILABLE"); fromEnv != "" {
		languages.Available = strings.Split(fromEnv, ",")
	}
	if fromEnv := os.Getenv("LANGUAGE_COOKIE_NAME"); fromEnv != "" {
		languages.CookieName = fromEnv
	}
	return languages
}

func durationFromEnv(name string, fallback time.Duration) (time.Duration, error) {
	fromEnv := os.Getenv(name)
	if fromEnv == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(fromEnv)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return parsed, nil
}

func intFromEnv(name string, fallback int) (int, error) {
	fromEnv := os.Getenv(name)
	if fromEnv == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(fromEnv)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return parsed, nil
}
