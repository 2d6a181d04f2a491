// Command folio-login signs in to a folio-auth server and keeps the session
// in a local file or a shared redis.
//
// Usage:
//
//	folio-login [flags] login <username> [password]
//	folio-login [flags] register <username> <email> [password]
//	folio-login [flags] whoami
//	folio-login [flags] logout
//
// The password is read from FOLIO_PASSWORD when not given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"

	auth "github.com/goliatone/go-folio-auth"
	"github.com/goliatone/go-folio-auth/client"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/goliatone/go-print"
)

type cliConfig struct {
	server    string
	storePath string
	redisURL  string
	verbose   bool
}

func main() {
	cfg := cliConfig{}
	flag.StringVar(&cfg.server, "server", envOr("FOLIO_AUTH_URL", "http://localhost:4040"), "auth server base URL")
	flag.StringVar(&cfg.storePath, "store", defaultStorePath(), "session file")
	flag.StringVar(&cfg.redisURL, "redis", os.Getenv("FOLIO_REDIS_URL"), "redis URL; overrides -store")
	flag.BoolVar(&cfg.verbose, "v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "folio-login: %s\n", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliConfig, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command: login, register, whoami or logout")
	}

	storage, closeStorage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	session := client.NewSession(
		client.NewAPIClient(cfg.server),
		client.NewTokenStore(storage),
		client.WithStateLogger(auth.NewSlogLogger(logger, "folio-login")),
	)
	defer session.Close()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "login":
		if len(rest) < 1 {
			return errors.New("usage: login <username> [password]")
		}
		id, err := session.Login(ctx, rest[0], passwordArg(rest, 1))
		if err != nil {
			return err
		}
		return printIdentity(id)

	case "register":
		if len(rest) < 2 {
			return errors.New("usage: register <username> <email> [password]")
		}
		password := passwordArg(rest, 2)
		id, err := session.Register(ctx, client.RegisterRequest{
			Username:        rest[0],
			Email:           rest[1],
			Password:        password,
			ConfirmPassword: password,
		})
		if err != nil {
			return err
		}
		return printIdentity(id)

	case "whoami":
		id := session.Identity(ctx)
		if id.IsAnonymous() {
			fmt.Println("not signed in")
			return nil
		}
		me, err := session.API().Me(ctx)
		if err != nil {
			// the server no longer accepts the token
			if token.StatusCode(err) == http.StatusUnauthorized {
				_ = session.Logout(ctx)
			}
			return err
		}
		fmt.Println(print.MaybePrettyJSON(me))
		return nil

	case "logout":
		if err := session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("signed out")
		return nil
	}

	return fmt.Errorf("unknown command %q", args[0])
}

func openStorage(cfg cliConfig) (client.Storage, func(), error) {
	if cfg.redisURL == "" {
		return client.NewFileStorage(cfg.storePath), func() {}, nil
	}

	// one namespace per auth server
	namespace := client.DefaultRedisNamespace
	if u, err := url.Parse(cfg.server); err == nil && u.Host != "" {
		namespace += ":" + u.Host
	}

	storage, err := client.NewRedisStorageFromURL(cfg.redisURL, namespace)
	if err != nil {
		return nil, nil, err
	}
	return storage, func() { _ = storage.Close() }, nil
}

func printIdentity(id client.Identity) error {
	fmt.Println(print.MaybePrettyJSON(id))
	return nil
}

func passwordArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return os.Getenv("FOLIO_PASSWORD")
}

func describe(err error) string {
	kind := token.KindOf(err)
	if kind == token.KindNone {
		return err.Error()
	}
	return fmt.Sprintf("%s (%s)", err.Error(), kind)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "folio", "session.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
