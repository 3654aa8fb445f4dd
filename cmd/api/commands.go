package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yourusername/login-gate/internal/config"
	"github.com/yourusername/login-gate/internal/httpserver"
	"github.com/yourusername/login-gate/internal/logutil"
	"github.com/yourusername/login-gate/internal/password"
	"github.com/yourusername/login-gate/internal/server"
	"github.com/yourusername/login-gate/internal/session"
	"github.com/yourusername/login-gate/internal/users"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Action: func(c *cli.Context) error {
			cfg, logger, ctx, err := setup(c.Context)
			if err != nil {
				return err
			}
			gin.SetMode(cfg.GinMode)

			repo, err := openUsers(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			// 失敗しても起動は続ける。最初の検索で再度初期化を試みる
			if err := repo.Bootstrap(ctx); err != nil {
				logger.Warn().Err(err).Msg("Bootstrap failed; it will be retried on first login")
			}

			store, closeStore, err := openSessions(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			router, err := server.NewRouter(server.Deps{
				Config:   cfg,
				Logger:   logger,
				Users:    repo,
				Sessions: store,
			})
			if err != nil {
				return err
			}

			logger.Info().
				Str("gin.mode", cfg.GinMode).
				Str("db.driver", cfg.DB.Driver).
				Str("session.backend", cfg.SessionBackend).
				Msg("Starting login server")
			return httpserver.Serve(ctx, ":"+cfg.Port, router)
		},
	}
}

func bootstrapCmd() *cli.Command {
	return &cli.Command{
		Name:  "bootstrap",
		Usage: "Create the usuarios table and insert the seed account",
		Action: func(c *cli.Context) error {
			cfg, logger, ctx, err := setup(c.Context)
			if err != nil {
				return err
			}
			repo, err := openUsers(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Bootstrap(ctx); err != nil {
				return err
			}
			logger.Info().Str("db.driver", cfg.DB.Driver).Msg("Bootstrap completed")
			return nil
		},
	}
}

func hashPasswordCmd() *cli.Command {
	var plain string
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print a bcrypt hash for the usuarios table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "password",
				Aliases:     []string{"p"},
				Usage:       "Password to hash (read from the terminal when omitted)",
				Destination: &plain,
			},
		},
		Action: func(c *cli.Context) error {
			if plain == "" {
				var err error
				plain, err = readPassword(os.Stdin, c.App.ErrWriter)
				if err != nil {
					return err
				}
			}
			plain = strings.TrimSpace(plain)
			if plain == "" {
				return errors.New("password must not be empty")
			}
			hash, err := password.Generate(plain)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, hash)
			return err
		},
	}
}

// setup は設定を読み込み、ロガーをコンテキストに載せます。
func setup(parent context.Context) (*config.Config, zerolog.Logger, context.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), parent, fmt.Errorf("load config: %w", err)
	}
	logger := logutil.New(os.Stderr, cfg.LogLevel)
	return cfg, logger, logutil.WithLogger(parent, logger), nil
}

func openUsers(ctx context.Context, cfg *config.Config) (*users.SQLStore, error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		return users.OpenPostgres(ctx, users.PostgresConfig{
			Host:        cfg.DB.Host,
			Port:        cfg.DB.Port,
			Name:        cfg.DB.Name,
			Maintenance: cfg.DB.Maintenance,
			User:        cfg.DB.User,
			Password:    cfg.DB.Password,
		}, cfg.Seed)
	default:
		return users.OpenSQLite(ctx, cfg.DB.Path, cfg.Seed)
	}
}

func openSessions(cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionBackend == config.SessionBackendRedis {
		store, err := session.NewRedisStoreFromURL(cfg.SessionRedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return session.NewMemoryStore(), func() {}, nil
}

func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}
