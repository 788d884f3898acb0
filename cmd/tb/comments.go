package main

import (
	"github.com/urfave/cli/v2"

	"github.com/and161185/travelblog/internal/convert"
	"github.com/and161185/travelblog/internal/model"
	"github.com/and161185/travelblog/internal/output"
	"github.com/and161185/travelblog/internal/plural"
)

func commentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "comments",
		Usage: "Read and write comments",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the comments of a post, newest first, with replies",
				ArgsUsage: "POST_ID",
				Flags:     pagesFlags(),
				Action:    commentsList,
			},
			{
				Name:      "add",
				Usage:     "Comment on a post or reply to a comment",
				ArgsUsage: "POST_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "content", Aliases: []string{"m"}, Required: true},
					&cli.Int64Flag{Name: "parent", Usage: "id of the comment to reply to"},
				},
				Action: commentsAdd,
			},
		},
	}
}

func commentsView(list []model.Comment) output.View {
	return output.View{Data: list, Rows: &output.Table{Headers: convert.CommentHeader, Rows: convert.CommentRows(list)}}
}

func commentsList(c *cli.Context) error {
	postID, err := argID(c, "POST_ID")
	if err != nil {
		return err
	}
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	ctl := e.comments.List(postID, c.Int("page-size"))
	defer ctl.Close()

	show := func(cs []model.Comment) error { return e.print(commentsView(cs)) }
	if err := drain(c, e, ctl, c.Int("pages"), c.Bool("interactive"), show); err != nil {
		return err
	}
	snap := ctl.Snapshot()
	e.note("%s, shown %d", plural.Count(snap.Total, "комментарий", "комментария", "комментариев"), len(snap.Items))
	return nil
}

func commentsAdd(c *cli.Context) error {
	postID, err := argID(c, "POST_ID")
	if err != nil {
		return err
	}
	var parent *int64
	if c.IsSet("parent") {
		p := c.Int64("parent")
		parent = &p
	}
	e, err := getEnv(c)
	if err != nil {
		return err
	}

	ctl := e.comments.List(postID, 0)
	defer ctl.Close()
	created, err := e.comments.Submit(ctx(c), ctl, postID, c.String("content"), parent)
	if err != nil {
		return err
	}
	if e.format != output.FormatTable {
		return e.print(created)
	}
	e.note("comment %d added", created.ID)
	snap := ctl.Snapshot()
	if snap.Err != nil {
		return nil
	}
	return e.print(commentsView(snap.Items))
}
