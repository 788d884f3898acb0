package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/and161185/travelblog/internal/config"
	"github.com/and161185/travelblog/internal/convert"
	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/logging"
	"github.com/and161185/travelblog/internal/migrate"
	"github.com/and161185/travelblog/internal/output"
	"github.com/and161185/travelblog/internal/plural"
)

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show blog totals and the latest posts",
		Action: func(c *cli.Context) error {
			e, err := getEnv(c)
			if err != nil {
				return err
			}
			st, err := e.stats.Load(ctx(c))
			if err != nil {
				return err
			}
			t := output.NewTable("COUNT", "")
			t.AddRow(fmt.Sprint(st.Posts), plural.Form(st.Posts, "Статья", "Статьи", "Статей"))
			t.AddRow(fmt.Sprint(st.Users), plural.Form(st.Users, "Путешественник", "Путешественника", "Путешественников"))
			t.AddRow(fmt.Sprint(st.Comments), plural.Form(st.Comments, "Комментарий", "Комментария", "Комментариев"))
			if err := e.print(output.View{Data: st, Rows: t}); err != nil {
				return err
			}
			if e.format == output.FormatTable && len(st.Latest) > 0 {
				e.note("")
				return e.print(&output.Table{Headers: convert.PostHeader, Rows: convert.PostRows(st.Latest)})
			}
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or upgrade the Postgres session table",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dsn", Usage: "Postgres DSN (default session.dsn)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil && !c.IsSet("dsn") {
				return err
			}
			dsn := c.String("dsn")
			if dsn == "" {
				dsn = cfg.Session.DSN
			}
			if dsn == "" {
				return fmt.Errorf("%w: no dsn; set --dsn or session.dsn with session.backend=%s",
					errs.ErrInvalidInput, config.BackendPostgres)
			}
			log, err := logging.New("info", cfg.Log.Format)
			if err != nil {
				log, _ = logging.New("info", "console")
			}
			defer func() { _ = log.Sync() }()
			return migrate.Up(ctx(c), dsn, log)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "tb %s (%s)\n", version, buildDate)
			return nil
		},
	}
}
