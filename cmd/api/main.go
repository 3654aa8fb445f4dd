// Package main はログインサーバーのエントリーポイントです。
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	serve := serveCmd()
	app := &cli.App{
		Name:  "login-gate",
		Usage: "Acceso con captcha, rol y materia",
		Commands: []*cli.Command{
			serve,
			bootstrapCmd(),
			hashPasswordCmd(),
		},
		// サブコマンド省略時はサーバーを起動する
		Action: serve.Action,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
