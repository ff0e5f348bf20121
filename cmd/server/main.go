package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"user-registry/internal/config"
	apphttp "user-registry/internal/http"
	"user-registry/internal/repository"
	"user-registry/internal/repository/sqlstore"
	"user-registry/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "user-registry",
		Usage: "serve the users resource over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file",
				EnvVars: []string{"USERAPI_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Action: serve,
			},
			{
				Name:   "init-db",
				Usage:  "create the users table and exit",
				Action: initDB,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	userService := service.NewUserService(repo, service.PageOptions{
		DefaultLimit: cfg.Pagination.DefaultLimit,
		MaxLimit:     cfg.Pagination.MaxLimit,
	}, logger)
	healthService := service.NewHealthService(repo, cfg.Database.PingTimeout)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	apphttp.NewHandler(userService, healthService, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return nil
}

func initDB(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	db, _, err := openStore(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Infof("users table ready (%s)", cfg.Database.Driver)
	return nil
}

func setup(c *cli.Context) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Log.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return logger, nil
}

// openStore connects to the database and makes sure the users table exists.
func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*sqlx.DB, repository.UserRepository, error) {
	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		PingTimeout: cfg.Database.PingTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	repo := sqlstore.NewUserRepository(db, logger)
	if err := repo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init user repository: %w", err)
	}
	return db, repo, nil
}
