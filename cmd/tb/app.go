package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/and161185/travelblog/internal/apiclient"
	"github.com/and161185/travelblog/internal/blogapi"
	"github.com/and161185/travelblog/internal/config"
	"github.com/and161185/travelblog/internal/logging"
	"github.com/and161185/travelblog/internal/output"
	"github.com/and161185/travelblog/internal/repository"
	"github.com/and161185/travelblog/internal/repository/file"
	"github.com/and161185/travelblog/internal/repository/postgres"
	"github.com/and161185/travelblog/internal/service"
	"github.com/and161185/travelblog/internal/session"
)

const envKey = "env"

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "tb",
		Usage:     "Travel blog command-line client",
		Version:   fmt.Sprintf("%s (%s)", version, buildDate),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			loginCommand(),
			registerCommand(),
			logoutCommand(),
			whoamiCommand(),
			sessionCommand(),
			postsCommand(),
			commentsCommand(),
			statsCommand(),
			migrateCommand(),
			versionCommand(),
		},
		After: teardown,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file (default ~/.travelblog/config.yaml)",
			EnvVars: []string{"TB_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "API base URL, e.g. http://127.0.0.1:8080/api",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "debug logging to stderr",
		},
	}
}

// env is everything a command needs, built once per run on first use.
type env struct {
	cfg    config.Config
	log    *zap.Logger
	format output.Format
	stdout io.Writer
	stderr io.Writer
	stdin  *bufio.Reader

	repo     repository.SessionRepository
	fileRepo *file.SessionRepo
	db       *postgres.DB
	store    *session.Store
	api      *blogapi.API

	auth     *service.AuthServiceImpl
	posts    *service.PostServiceImpl
	comments *service.CommentServiceImpl
	stats    *service.StatsServiceImpl
}

func getEnv(c *cli.Context) (*env, error) {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e, nil
	}
	e, err := buildEnv(c)
	if err != nil {
		return nil, err
	}
	c.App.Metadata[envKey] = e
	return e, nil
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(config.WithFile(c.String("config")))
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("base-url") {
		cfg.API.BaseURL = c.String("base-url")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func buildEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg:    cfg,
		log:    log,
		format: format,
		stdout: c.App.Writer,
		stderr: c.App.ErrWriter,
		stdin:  bufio.NewReader(c.App.Reader),
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		db, err := postgres.New(ctx(c), cfg.Session.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect session database: %w", err)
		}
		e.db = db
		e.repo = postgres.NewSessionRepo(db)
	default:
		e.fileRepo = file.NewSessionRepo(cfg.Session.Dir, file.WithPassphrase(cfg.Session.Passphrase))
		e.repo = e.fileRepo
	}

	origin, err := session.Origin(cfg.API.BaseURL)
	if err != nil {
		e.close()
		return nil, err
	}
	e.store = session.New(e.repo, origin, session.WithLogger(log))

	client, err := apiclient.New(cfg.API.BaseURL,
		apiclient.WithTokenSource(e.store),
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithLogger(log),
		apiclient.WithUserAgent("tb/"+version),
	)
	if err != nil {
		e.close()
		return nil, err
	}
	e.api = blogapi.New(client)
	e.auth = service.NewAuthService(e.api, e.store, log)
	e.posts = service.NewPostService(e.api, log)
	e.comments = service.NewCommentService(e.api, e.store, log)
	e.stats = service.NewStatsService(e.api, log)

	log.Debug("client ready",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("origin", origin),
		zap.String("session_backend", cfg.Session.Backend),
	)
	return e, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	_ = e.log.Sync()
}

func teardown(c *cli.Context) error {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		e.close()
		delete(c.App.Metadata, envKey)
	}
	return nil
}

func ctx(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

// print renders data in the configured format.
func (e *env) print(data any) error {
	return output.NewFormatter(e.format).Format(e.stdout, data)
}

// note writes a human-oriented line. It is suppressed for json and yaml so that stdout stays
// machine-readable.
func (e *env) note(format string, args ...any) {
	if e.format != output.FormatTable {
		return
	}
	fmt.Fprintf(e.stdout, format+"\n", args...)
}

// prompt asks on stderr and reads one line from stdin.
func (e *env) prompt(label string) (string, error) {
	fmt.Fprint(e.stderr, label)
	line, err := e.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readAll reads a file, or stdin for "-".
func (e *env) readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(e.stdin)
	}
	return os.ReadFile(p)
}

// report prints a failed command to w, with a hint when the API could not be reached.
func report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	if apiclient.IsTransport(err) && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "hint: the API server did not answer; check --base-url or TB_API_BASE_URL")
	}
}
