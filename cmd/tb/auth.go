package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/and161185/travelblog/internal/convert"
	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/logging"
	"github.com/and161185/travelblog/internal/model"
	"github.com/and161185/travelblog/internal/output"
	"github.com/and161185/travelblog/internal/session"
)

func passwordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "password (prompted when empty)",
		EnvVars: []string{"TB_PASSWORD"},
	}
}

func (e *env) password(c *cli.Context) (string, error) {
	if p := c.String("password"); p != "" {
		return p, nil
	}
	return e.prompt("Password: ")
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email", Required: true},
			passwordFlag(),
		},
		Action: func(c *cli.Context) error {
			e, err := getEnv(c)
			if err != nil {
				return err
			}
			pw, err := e.password(c)
			if err != nil {
				return err
			}
			u, err := e.auth.Login(ctx(c), c.String("email"), pw)
			if err != nil {
				return err
			}
			return e.printUser(c, u, "logged in as %s")
		},
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			passwordFlag(),
			&cli.StringFlag{Name: "first-name"},
			&cli.StringFlag{Name: "last-name"},
		},
		Action: func(c *cli.Context) error {
			e, err := getEnv(c)
			if err != nil {
				return err
			}
			pw, err := e.password(c)
			if err != nil {
				return err
			}
			req := model.RegisterRequest{
				Email:    c.String("email"),
				Username: c.String("username"),
				Password: pw,
			}
			if c.IsSet("first-name") {
				v := c.String("first-name")
				req.FirstName = &v
			}
			if c.IsSet("last-name") {
				v := c.String("last-name")
				req.LastName = &v
			}
			u, err := e.auth.Register(ctx(c), req)
			if err != nil {
				return err
			}
			return e.printUser(c, u, "registered as %s")
		},
	}
}

func (e *env) printUser(c *cli.Context, u model.User, msg string) error {
	if e.format != output.FormatTable {
		return e.print(u)
	}
	e.note(msg, convert.DisplayName(&u))
	if exp, ok := e.store.Expiry(ctx(c)); ok {
		e.note("session expires %s", exp.Local().Format(time.DateTime))
	}
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Revoke the refresh token and forget the session",
		Action: func(c *cli.Context) error {
			e, err := getEnv(c)
			if err != nil {
				return err
			}
			if err := e.auth.Logout(ctx(c)); err != nil {
				return err
			}
			e.note("logged out")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current user",
		Action: func(c *cli.Context) error {
			e, err := getEnv(c)
			if err != nil {
				return err
			}
			u, err := e.auth.Me(ctx(c))
			if errors.Is(err, errs.ErrUnauthorized) {
				return fmt.Errorf("%w: session rejected by the server, run tb login", err)
			}
			if err != nil {
				return err
			}
			return e.print(userView(u))
		},
	}
}

func userView(u model.User) output.View {
	return output.View{Data: u, Rows: output.KV(
		"id", fmt.Sprint(u.ID),
		"username", u.Username,
		"name", convert.DisplayName(&u),
		"email", u.Email,
		"role", string(u.Role),
		"registered", convert.FormatDate(u.CreatedAt),
	)}
}

type sessionStatus struct {
	Origin        string     `json:"origin"`
	Backend       string     `json:"backend"`
	Authenticated bool       `json:"authenticated"`
	AccessToken   string     `json:"accessToken,omitempty"`
	RefreshToken  string     `json:"refreshToken,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Expired       bool       `json:"expired"`
}

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect the stored session",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show whether a session is stored and when it expires",
				Action: sessionStatusAction,
			},
			{
				Name:   "watch",
				Usage:  "Print login and logout events, including those made by other tb processes",
				Action: sessionWatchAction,
			},
		},
	}
}

func sessionStatusAction(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	t, err := e.store.Tokens(ctx(c))
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	st := sessionStatus{
		Origin:        e.store.OriginName(),
		Backend:       e.cfg.Session.Backend,
		Authenticated: !t.Empty(),
		AccessToken:   logging.Mask(t.AccessToken),
		RefreshToken:  logging.Mask(t.RefreshToken),
	}
	expires := "-"
	if exp, ok := session.TokenExpiry(t.AccessToken); ok {
		st.ExpiresAt = &exp
		st.Expired = time.Now().After(exp)
		expires = exp.Local().Format(time.DateTime)
	}
	return e.print(output.View{Data: st, Rows: output.KV(
		"origin", st.Origin,
		"backend", st.Backend,
		"authenticated", fmt.Sprint(st.Authenticated),
		"access token", st.AccessToken,
		"expires", expires,
		"expired", fmt.Sprint(st.Expired),
	)})
}

func sessionWatchAction(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	if e.fileRepo == nil {
		return fmt.Errorf("%w: session watch needs the file backend", errs.ErrInvalidInput)
	}
	w, err := e.store.Watch(ctx(c), e.fileRepo.Path(e.store.OriginName()))
	if err != nil {
		return err
	}
	defer w.Close()

	unsubscribe := e.store.Subscribe(func(ev session.Event) {
		fmt.Fprintf(e.stdout, "%s %s %s\n", time.Now().Format(time.TimeOnly), ev.Kind, ev.Origin)
	})
	defer unsubscribe()

	fmt.Fprintf(e.stderr, "watching %s (Ctrl+C to stop)\n", e.store.OriginName())
	if err := w.Run(ctx(c)); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
