package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/and161185/travelblog/internal/convert"
	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/model"
	"github.com/and161185/travelblog/internal/output"
	"github.com/and161185/travelblog/internal/paging"
	"github.com/and161185/travelblog/internal/plural"
	"github.com/and161185/travelblog/internal/service"
)

func pagesFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page-size", Usage: "items per request (0 = server default of the list)"},
		&cli.IntFlag{Name: "pages", Value: 1, Usage: "pages to load, 0 loads all"},
		&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "ask before loading each further page"},
	}
}

func postsCommand() *cli.Command {
	postFields := []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
		&cli.StringFlag{Name: "content"},
		&cli.StringFlag{Name: "content-file", Usage: "read content from a file, - for stdin"},
		&cli.StringFlag{Name: "excerpt"},
		&cli.StringFlag{Name: "image-url"},
		&cli.StringFlag{Name: "status", Usage: "draft or published"},
	}
	return &cli.Command{
		Name:  "posts",
		Usage: "Browse and edit posts",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List published posts, or the posts of one author",
				Flags:  append([]cli.Flag{&cli.Int64Flag{Name: "user", Usage: "author id"}}, pagesFlags()...),
				Action: postsList,
			},
			{
				Name:      "get",
				Usage:     "Show a post with its comments",
				ArgsUsage: "POST_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "comment-pages", Value: 1, Usage: "comment pages to load, 0 loads all"},
				},
				Action: postsGet,
			},
			{
				Name:   "create",
				Usage:  "Write a new post",
				Flags:  postFields,
				Action: postsCreate,
			},
			{
				Name:      "update",
				Usage:     "Change fields of a post you own",
				ArgsUsage: "POST_ID",
				Flags:     postFields,
				Action:    postsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a post you own",
				ArgsUsage: "POST_ID",
				Action:    postsDelete,
			},
		},
	}
}

func argID(c *cli.Context, what string) (int64, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("%w: expected %s", errs.ErrInvalidInput, what)
	}
	return service.ParseID(c.Args().First())
}

// drain loads up to pages pages (0 = all). In interactive mode it asks before each further page
// and prints every page as it arrives through show.
func drain[T any](c *cli.Context, e *env, ctl *paging.Controller[T], pages int, interactive bool, show func([]T) error) error {
	cx := ctx(c)
	if interactive {
		ctl.OnChange(func(s paging.Snapshot[T]) {
			if s.State == paging.StateLoadingMore {
				fmt.Fprintf(e.stderr, "loading page %d...\n", s.Page+1)
			}
		})
	}
	if err := ctl.Load(cx); err != nil {
		return err
	}
	shown := 0
	flush := func() error {
		items := ctl.Items()
		if !interactive || shown >= len(items) {
			return nil
		}
		err := show(items[shown:])
		shown = len(items)
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	for loaded := 1; ctl.HasMore() && (pages == 0 || loaded < pages || interactive); loaded++ {
		if interactive {
			snap := ctl.Snapshot()
			ans, err := e.prompt(fmt.Sprintf("%d of %d shown, load more? [Y/n] ", len(snap.Items), snap.Total))
			if err != nil || strings.HasPrefix(strings.ToLower(strings.TrimSpace(ans)), "n") {
				break
			}
		}
		if _, err := ctl.LoadMore(cx); err != nil {
			return err
		}
		if err := flush(); err != nil {
			return err
		}
	}
	if interactive {
		return nil
	}
	return show(ctl.Items())
}

func postsList(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	ctl := e.posts.List(c.Int64("user"), c.Int("page-size"))
	defer ctl.Close()

	show := func(posts []model.Post) error {
		return e.print(output.View{Data: posts, Rows: &output.Table{Headers: convert.PostHeader, Rows: convert.PostRows(posts)}})
	}
	if err := drain(c, e, ctl, c.Int("pages"), c.Bool("interactive"), show); err != nil {
		return err
	}
	snap := ctl.Snapshot()
	e.note("%s, shown %d", plural.Count(snap.Total, "статья", "статьи", "статей"), len(snap.Items))
	return nil
}

type postDetail struct {
	Post          model.Post      `json:"post"`
	Comments      []model.Comment `json:"comments"`
	CommentsTotal int             `json:"commentsTotal"`
}

func postsGet(c *cli.Context) error {
	id, err := argID(c, "POST_ID")
	if err != nil {
		return err
	}
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	p, err := e.posts.Get(ctx(c), id)
	if err != nil {
		return err
	}

	ctl := e.comments.List(id, 0)
	defer ctl.Close()
	var comments []model.Comment
	if err := drain(c, e, ctl, c.Int("comment-pages"), false, func(cs []model.Comment) error {
		comments = cs
		return nil
	}); err != nil {
		return err
	}
	total := ctl.Snapshot().Total

	if e.format != output.FormatTable {
		return e.print(postDetail{Post: p, Comments: comments, CommentsTotal: total})
	}
	if err := e.print(postView(p)); err != nil {
		return err
	}
	e.note("")
	e.note("%s", plural.Count(total, "комментарий", "комментария", "комментариев"))
	if len(comments) == 0 {
		return nil
	}
	return e.print(&output.Table{Headers: convert.CommentHeader, Rows: convert.CommentRows(comments)})
}

func postView(p model.Post) output.View {
	return output.View{Data: p, Rows: output.KV(
		"id", fmt.Sprint(p.ID),
		"title", p.Title,
		"author", convert.DisplayName(p.User),
		"status", string(p.Status),
		"created", convert.FormatDate(p.CreatedAt),
		"excerpt", convert.Excerpt(p, 120),
	)}
}

func (e *env) contentFlag(c *cli.Context) (string, bool, error) {
	if c.IsSet("content-file") {
		b, err := e.readAll(c.String("content-file"))
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	}
	return c.String("content"), c.IsSet("content"), nil
}

func optional(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func postsCreate(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	content, _, err := e.contentFlag(c)
	if err != nil {
		return err
	}
	p, err := e.posts.Create(ctx(c), model.CreatePostRequest{
		Title:    c.String("title"),
		Content:  content,
		Excerpt:  optional(c, "excerpt"),
		ImageURL: optional(c, "image-url"),
		Status:   model.PostStatus(c.String("status")),
	})
	if err != nil {
		return err
	}
	return e.print(postView(p))
}

// requireEditable checks ownership on the client before a write, the way the post page only
// offers edit and delete to the author and admins.
func (e *env) requireEditable(cx context.Context, id int64) error {
	me, err := e.auth.Me(cx)
	if err != nil {
		return err
	}
	p, err := e.posts.Get(cx, id)
	if err != nil {
		return err
	}
	if !service.CanEdit(&me, p) {
		return fmt.Errorf("%w: post %d belongs to another user", errs.ErrForbidden, id)
	}
	return nil
}

func postsUpdate(c *cli.Context) error {
	id, err := argID(c, "POST_ID")
	if err != nil {
		return err
	}
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	content, hasContent, err := e.contentFlag(c)
	if err != nil {
		return err
	}
	req := model.UpdatePostRequest{
		Title:    optional(c, "title"),
		Excerpt:  optional(c, "excerpt"),
		ImageURL: optional(c, "image-url"),
	}
	if hasContent {
		req.Content = &content
	}
	if c.IsSet("status") {
		st := model.PostStatus(c.String("status"))
		req.Status = &st
	}
	if req == (model.UpdatePostRequest{}) {
		return fmt.Errorf("%w: nothing to update", errs.ErrInvalidInput)
	}
	if err := e.requireEditable(ctx(c), id); err != nil {
		return err
	}
	p, err := e.posts.Update(ctx(c), id, req)
	if err != nil {
		return err
	}
	return e.print(postView(p))
}

func postsDelete(c *cli.Context) error {
	id, err := argID(c, "POST_ID")
	if err != nil {
		return err
	}
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	if err := e.requireEditable(ctx(c), id); err != nil {
		return err
	}
	if err := e.posts.Delete(ctx(c), id); err != nil {
		return err
	}
	e.note("post %d deleted", id)
	return nil
}
