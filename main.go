package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Blog struct {
	db        *sqlx.DB
	sessions  sessions.Store
	templates map[string]*template.Template
	logger    *zap.Logger
}

func NewBlog(db *sqlx.DB, store sessions.Store, logger *zap.Logger) *Blog {
	return &Blog{
		db:        db,
		sessions:  store,
		templates: loadTemplates(),
		logger:    logger,
	}
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [serve|init-db]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  serve     Run the HTTP server (default)\n")
		fmt.Fprintf(os.Stderr, "  init-db   Create the schema, admin user and first post\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DATABASE_URL    Connection URL, postgresql:// or sqlite:/// (default: sqlite:///$DATABASE_NAME)\n")
		fmt.Fprintf(os.Stderr, "  DATABASE_NAME   SQLite file used without DATABASE_URL (default: blog.db)\n")
		fmt.Fprintf(os.Stderr, "  SECRET_KEY      Session signing key\n")
		fmt.Fprintf(os.Stderr, "  SERVER_ADDR     Listen address (default: :8080)\n")
		fmt.Fprintf(os.Stderr, "  APP_ENV         development|production (default: development)\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL       debug|info|warn|error (default: info)\n")
	}
	flag.Parse()

	command := "serve"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	if err := run(command); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string) error {
	if command != "serve" && command != "init-db" {
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	driver, dsn, err := parseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	db, err := openDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "init-db" {
		return initDatabase(ctx, db, logger, os.Stdout)
	}

	if err := migrateDB(db, logger); err != nil {
		return err
	}

	if cfg.UsesDefaultSecret() {
		logger.Warn("SECRET_KEY is not set, sessions are signed with the default key")
	}

	blog := NewBlog(db, newSessionStore(cfg.SecretKey, !cfg.IsDevelopment()), logger)
	return serve(ctx, cfg.ServerAddr, blog.routes(cfg.SecretKey), logger)
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
