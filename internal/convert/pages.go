// Package convert maps API records to paging pages and to display rows.
package convert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/travelblog/internal/model"
	"github.com/and161185/travelblog/internal/paging"
)

// --- list envelopes -> pages ---

// PostsPage converts a posts list into a paging page.
func PostsPage(l model.PostsList) paging.Page[model.Post] {
	return paging.Page[model.Post]{Items: l.Posts, Total: l.Total}
}

// CommentsPage converts a comments list into a paging page.
func CommentsPage(l model.CommentsList) paging.Page[model.Comment] {
	return paging.Page[model.Comment]{Items: l.Comments, Total: l.Total}
}

// PostsFetch adapts a posts list call to a paging.FetchFunc.
func PostsFetch(list func(ctx context.Context, page, pageSize int) (model.PostsList, error)) paging.FetchFunc[model.Post] {
	return func(ctx context.Context, page, pageSize int) (paging.Page[model.Post], error) {
		l, err := list(ctx, page, pageSize)
		if err != nil {
			return paging.Page[model.Post]{}, err
		}
		return PostsPage(l), nil
	}
}

// CommentsFetch adapts a comments list call to a paging.FetchFunc.
func CommentsFetch(list func(ctx context.Context, page, pageSize int) (model.CommentsList, error)) paging.FetchFunc[model.Comment] {
	return func(ctx context.Context, page, pageSize int) (paging.Page[model.Comment], error) {
		l, err := list(ctx, page, pageSize)
		if err != nil {
			return paging.Page[model.Comment]{}, err
		}
		return CommentsPage(l), nil
	}
}

// --- display helpers ---

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatDate renders t as a long Russian date, e.g. "1 мая 2024 г.". Zero time gives "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d г.", t.Day(), monthsGenitive[t.Month()-1], t.Year())
}

// DisplayName is "First Last" when either is set, else the username.
func DisplayName(u *model.User) string {
	if u == nil {
		return ""
	}
	var parts []string
	for _, p := range []*string{u.FirstName, u.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	if len(parts) == 0 {
		return u.Username
	}
	return strings.Join(parts, " ")
}

// Excerpt returns the post excerpt, or the content cut to max runes.
func Excerpt(p model.Post, max int) string {
	if p.Excerpt != nil && *p.Excerpt != "" {
		return *p.Excerpt
	}
	r := []rune(strings.Join(strings.Fields(p.Content), " "))
	if max <= 0 || len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "…"
}

// --- rows ---

// PostHeader is the column set of PostRow.
var PostHeader = []string{"ID", "TITLE", "AUTHOR", "STATUS", "CREATED"}

// PostRow renders one post for a table.
func PostRow(p model.Post) []string {
	return []string{
		fmt.Sprint(p.ID),
		p.Title,
		DisplayName(p.User),
		string(p.Status),
		FormatDate(p.CreatedAt),
	}
}

// PostRows renders posts in order.
func PostRows(posts []model.Post) [][]string {
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, PostRow(p))
	}
	return rows
}

// CommentHeader is the column set of CommentRows.
var CommentHeader = []string{"ID", "AUTHOR", "CREATED", "CONTENT"}

// CommentRows flattens a thread: each comment is followed by its replies, whose IDs are
// prefixed with "↳ ".
func CommentRows(comments []model.Comment) [][]string {
	var rows [][]string
	for _, c := range comments {
		rows = append(rows, commentRow(c, ""))
		for _, r := range c.Replies {
			rows = append(rows, commentRow(r, "↳ "))
		}
	}
	return rows
}

func commentRow(c model.Comment, prefix string) []string {
	return []string{
		prefix + fmt.Sprint(c.ID),
		DisplayName(c.User),
		FormatDate(c.CreatedAt),
		c.Content,
	}
}
