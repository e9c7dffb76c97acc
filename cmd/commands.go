package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"

	"github.com/dtroode/jobboard-client/internal/countdown"
	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/service"
	"github.com/dtroode/jobboard-client/internal/validate"
)

var errUnknownCommand = errors.New("unknown command")

type app struct {
	session   *service.Session
	redirects *service.Redirects
	logger    *logger.Logger
	in        io.Reader
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return a.status(ctx)
	case "login":
		return a.login(ctx, args)
	case "otp":
		return a.otp(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "oauth":
		return a.oauth(ctx, args)
	case "forgot":
		return a.forgot(ctx, args)
	case "reset":
		return a.reset(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "verify-email":
		return a.verifyEmail(ctx, args)
	case "resend-verification":
		return a.resendVerification(ctx, args)
	case "two-factor":
		return a.twoFactor(ctx, args)
	default:
		usage()
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

func (a *app) hydrate(ctx context.Context) {
	if err := a.session.Hydrate(ctx); err != nil {
		a.logger.Debug("session revalidation failed", "error", err)
	}
}

func (a *app) status(ctx context.Context) error {
	a.hydrate(ctx)
	snap := a.session.Snapshot()

	switch {
	case snap.LoggedIn():
		color.Green.Printf("Logged in as %s (%s)\n", snap.User.Username, snap.User.Email)
		if snap.Stale {
			color.Yellow.Println("Session could not be revalidated; showing cached details.")
		}
		fmt.Printf("Two-factor login: %s\n", onOff(snap.User.TwoFactorEnabled))
	default:
		color.Yellow.Println("Not logged in.")
		if remembered, err := a.session.RememberedUsername(ctx); err == nil && remembered != "" {
			fmt.Printf("Remembered username: %s\n", remembered)
		}
	}
	if snap.Locked {
		color.Red.Printf("Login locked for %s\n", countdown.Format(snap.LockoutRemaining))
	}
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	identifier := fs.String("u", "", "username or email")
	password := fs.String("p", "", "password")
	remember := fs.Bool("remember", false, "remember username and this device")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.hydrate(ctx)
	if *identifier == "" {
		if remembered, err := a.session.RememberedUsername(ctx); err == nil {
			*identifier = remembered
		}
	}

	res, err := a.session.SubmitCredentials(ctx, service.Credentials{
		Identifier: *identifier,
		Secret:     *password,
		RememberMe: *remember,
	})
	if err != nil {
		if res.Outcome == service.OutcomeLocked {
			color.Red.Printf("Account locked. Try again in %s\n", countdown.Format(res.RemainingSeconds))
		}
		return err
	}

	switch res.Outcome {
	case service.OutcomeAuthenticated:
		color.Green.Printf("Welcome back, %s\n", res.User.Username)
		return nil
	case service.OutcomeEmailVerificationRequired:
		color.Yellow.Println(res.Message)
		return nil
	case service.OutcomeTwoFactorRequired:
		color.Cyan.Printf("Two-factor code required (expires in %s)\n",
			countdown.Format(countdown.Seconds(time.Now(), res.Ticket.ExpiresAt)))
		return a.redeem(ctx, "", time.Time{}, *remember)
	default:
		color.Yellow.Println(res.Message)
		return nil
	}
}

func (a *app) otp(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("otp", flag.ContinueOnError)
	ticket := fs.String("ticket", "", "ticket from the verification link")
	expires := fs.Int64("expires", 0, "ticket expiry in epoch milliseconds")
	remember := fs.Bool("remember-device", false, "skip two-factor on this device next time")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var expiresAt time.Time
	if *expires > 0 {
		expiresAt = time.UnixMilli(*expires)
	}
	return a.redeem(ctx, *ticket, expiresAt, *remember)
}

func (a *app) redeem(ctx context.Context, ticket string, expiresAt time.Time, remember bool) error {
	t, err := a.session.PrepareTwoFactor(ctx, ticket, expiresAt)
	if err != nil {
		snap := a.session.Snapshot()
		if snap.Ticket.Status.Terminal() {
			color.Red.Println(snap.Message)
		}
		return err
	}

	for {
		left := countdown.Seconds(time.Now(), t.ExpiresAt)
		code, err := a.prompt(fmt.Sprintf("Code (%s left): ", countdown.Format(left)))
		if err != nil {
			return err
		}

		user, err := a.session.SubmitOTP(ctx, code, remember)
		switch {
		case err == nil:
			color.Green.Printf("Welcome back, %s\n", user.Username)
			return nil
		case errors.Is(err, model.ErrTicketExpired), errors.Is(err, model.ErrTicketInvalid):
			return err
		case errors.Is(err, validate.ErrInvalid), errors.Is(err, model.ErrValidation):
			color.Yellow.Println(model.UserMessage(err))
		default:
			return err
		}
	}
}

func (a *app) logout(ctx context.Context) error {
	a.hydrate(ctx)
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	color.Green.Println("Logged out.")
	return nil
}

func (a *app) oauth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("oauth", flag.ContinueOnError)
	returnURL := fs.String("url", "", "return URL from the Google login")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *returnURL == "" {
		fmt.Printf("Open %s in a browser, then run: oauth -url <return URL>\n", a.session.GoogleAuthURL())
		return nil
	}

	user, err := a.redirects.CaptureOAuth(ctx, *returnURL)
	if err != nil {
		return err
	}
	color.Green.Printf("Welcome, %s\n", user.Username)
	return nil
}

func (a *app) forgot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg, err := a.session.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	color.Green.Println(msg)
	return nil
}

func (a *app) reset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	link := fs.String("url", "", "password reset link")
	password := fs.String("p", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tok, err := a.redirects.OpenPasswordReset(ctx, *link)
	if err != nil {
		if errors.Is(err, model.ErrResetTokenInvalid) {
			color.Yellow.Println("Request a new reset link with: forgot -email <address>")
		}
		return err
	}

	msg, err := a.redirects.SubmitPasswordReset(ctx, tok, *password, *confirm)
	if err != nil {
		return err
	}
	color.Green.Println(msg)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	form := validate.RegisterForm{}
	fs.StringVar(&form.Username, "u", "", "username")
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.Password, "p", "", "password")
	fs.StringVar(&form.Confirm, "confirm", "", "password again")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.session.Register(ctx, form)
	if err != nil {
		return err
	}
	switch res.Outcome {
	case service.OutcomeAuthenticated:
		color.Green.Printf("Welcome, %s\n", res.User.Username)
	case service.OutcomeEmailVerificationRequired:
		color.Yellow.Println(res.Message)
		if res.VerificationToken != "" {
			fmt.Printf("Verification token: %s\n", res.VerificationToken)
		}
	default:
		color.Green.Println(res.Message)
	}
	return nil
}

func (a *app) verifyEmail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-email", flag.ContinueOnError)
	link := fs.String("url", "", "email verification link")
	code := fs.String("code", "", "six digit code from the email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tok, err := a.redirects.OpenEmailVerification(ctx, *link)
	if err != nil {
		return err
	}
	res, err := a.redirects.SubmitEmailVerification(ctx, tok, *code)
	if err != nil {
		return err
	}
	if res.Outcome == service.OutcomeAuthenticated {
		color.Green.Printf("Email verified. Welcome, %s\n", res.User.Username)
		return nil
	}
	color.Green.Println(res.Message)
	return nil
}

func (a *app) resendVerification(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resend-verification", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg, err := a.redirects.ResendEmailVerification(ctx, *email)
	if err != nil {
		return err
	}
	color.Green.Println(msg)
	return nil
}

func (a *app) twoFactor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("two-factor", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: two-factor expects on or off", errUnknownCommand)
	}
	enable, err := parseOnOff(fs.Arg(0))
	if err != nil {
		return err
	}

	a.hydrate(ctx)
	user, err := a.session.SetTwoFactor(ctx, enable)
	if err != nil {
		return err
	}
	color.Green.Printf("Two-factor login is now %s\n", onOff(user.TwoFactorEnabled))
	return nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}
