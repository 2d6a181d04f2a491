// Command folio-auth serves the portfolio authentication API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-folio-auth"
	"github.com/goliatone/go-folio-auth/activitymap"
	"github.com/goliatone/go-folio-auth/middleware/jwtware"
)

func main() {
	configPath := flag.String("config", os.Getenv("FOLIO_AUTH_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("folio-auth exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	opts, err := auth.LoadOptions(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", "folio-auth")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	db, err := auth.OpenDB(opts.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := auth.CreateSchema(ctx, db); err != nil {
		return err
	}

	var usersOpts []auth.UsersOption
	if opts.DeterministicIDs {
		usersOpts = append(usersOpts, auth.WithDeterministicIDs())
	}
	repo := auth.NewRepositoryManager(db, usersOpts...)
	repo.MustValidate()

	provider := auth.NewUserProvider(repo.Users()).
		WithLogger(auth.NewSlogLogger(logger, "provider")).
		WithDefaultRole(opts.DefaultRole)

	auther := auth.NewAuthenticator(provider, opts).
		WithLogger(auth.NewSlogLogger(logger, "auther")).
		WithActivitySink(activitymap.LogSink(logger.With("component", "activity"), activitymap.WithDefaultChannel("api")))

	app := fiber.New(fiber.Config{
		AppName:               "folio-auth",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	auth.RegisterAuthRoutes(app,
		auth.WithAuther(auther),
		auth.WithUsers(repo.Users()),
		auth.WithControllerConfig(opts),
		auth.WithControllerDebug(opts.Debug),
		auth.WithControllerLogger(auth.NewSlogLogger(logger, "controller")),
		auth.WithValidationListeners(func(c *fiber.Ctx, claims jwtware.AuthClaims) error {
			logger.Debug("token accepted", "sub", claims.Subject(), "path", c.Path())
			return nil
		}),
	)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.Listen)
		errc <- app.Listen(opts.Listen)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
