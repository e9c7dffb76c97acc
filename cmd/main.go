package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"

	"github.com/dtroode/jobboard-client/internal/api"
	"github.com/dtroode/jobboard-client/internal/clock"
	"github.com/dtroode/jobboard-client/internal/config"
	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/service"
	"github.com/dtroode/jobboard-client/internal/store"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if os.Args[1] == "version" {
		logAppVersion()
		return
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	st, closer, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to open state store", "error", err, "backend", cfg.Store.Backend)
	}
	defer closer.Close()

	client := api.New(cfg.API, logger, api.WithCSRFSource(func(ctx context.Context) string {
		v, _, err := st.Get(ctx, model.ScopeDurable, model.KeyCSRFToken)
		if err != nil {
			return ""
		}
		return v
	}))

	session := service.NewSession(client, st, cfg, clock.Real(), logger)
	defer session.Close()
	redirects := service.NewRedirects(client, st, session, logger)

	app := &app{session: session, redirects: redirects, logger: logger, in: os.Stdin}
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		color.Red.Println(model.UserMessage(err))
		logger.Debug("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: jobboard <command> [flags]

commands:
  status               show the current session
  login                log in with username or email
  otp                  complete a pending two-factor login
  logout               end the session
  oauth                complete a Google login from its return URL
  forgot               request a password reset email
  reset                set a new password from a reset link
  register             create an account
  verify-email         confirm an email address from a verification link
  resend-verification  send a new email verification code
  two-factor           enable or disable two-factor login
  version              print build information
`)
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
