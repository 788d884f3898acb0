// Package blogapi has one typed call per travel blog API operation.
// Accessors do no validation; bad input is rejected by the server.
package blogapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/and161185/travelblog/internal/apiclient"
	"github.com/and161185/travelblog/internal/model"
)

// Default page sizes of the list operations.
const (
	PostsPageSize     = 9
	UserPostsPageSize = 12
	CommentsPageSize  = 10
)

// API wraps a request client.
type API struct {
	c *apiclient.Client
}

// New returns accessors bound to c.
func New(c *apiclient.Client) *API { return &API{c: c} }

func pageQuery(page, pageSize, def int) apiclient.CallOption {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = def
	}
	return apiclient.WithQuery(url.Values{
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
	})
}

// ListPosts returns a page of published posts, newest first.
func (a *API) ListPosts(ctx context.Context, page, pageSize int) (model.PostsList, error) {
	return apiclient.Do[model.PostsList](ctx, a.c, http.MethodGet, "/posts", nil,
		pageQuery(page, pageSize, PostsPageSize))
}

// PostsByUser returns a page of the posts written by userID.
func (a *API) PostsByUser(ctx context.Context, userID int64, page, pageSize int) (model.PostsList, error) {
	return apiclient.Do[model.PostsList](ctx, a.c, http.MethodGet, fmt.Sprintf("/posts/user/%d", userID), nil,
		pageQuery(page, pageSize, UserPostsPageSize))
}

func (a *API) GetPost(ctx context.Context, id int64) (model.Post, error) {
	return apiclient.Do[model.Post](ctx, a.c, http.MethodGet, fmt.Sprintf("/posts/%d", id), nil)
}

func (a *API) CreatePost(ctx context.Context, req model.CreatePostRequest) (model.Post, error) {
	return apiclient.Do[model.Post](ctx, a.c, http.MethodPost, "/posts", req)
}

func (a *API) UpdatePost(ctx context.Context, id int64, req model.UpdatePostRequest) (model.Post, error) {
	return apiclient.Do[model.Post](ctx, a.c, http.MethodPut, fmt.Sprintf("/posts/%d", id), req)
}

// DeletePost answers with a message only.
func (a *API) DeletePost(ctx context.Context, id int64) error {
	return apiclient.DoVoid(ctx, a.c, http.MethodDelete, fmt.Sprintf("/posts/%d", id), nil)
}

// ListComments returns a page of top-level comments with their replies.
func (a *API) ListComments(ctx context.Context, postID int64, page, pageSize int) (model.CommentsList, error) {
	return apiclient.Do[model.CommentsList](ctx, a.c, http.MethodGet, fmt.Sprintf("/comments/post/%d", postID), nil,
		pageQuery(page, pageSize, CommentsPageSize))
}

func (a *API) CreateComment(ctx context.Context, postID int64, req model.CreateCommentRequest) (model.Comment, error) {
	return apiclient.Do[model.Comment](ctx, a.c, http.MethodPost, fmt.Sprintf("/comments/post/%d", postID), req)
}

// CommentsTotal unwraps {total} into a bare number.
func (a *API) CommentsTotal(ctx context.Context) (int, error) {
	n, err := apiclient.Do[model.Count](ctx, a.c, http.MethodGet, "/comments/count", nil)
	return n.Total, err
}

// UsersTotal unwraps {total} into a bare number.
func (a *API) UsersTotal(ctx context.Context) (int, error) {
	n, err := apiclient.Do[model.Count](ctx, a.c, http.MethodGet, "/users/count", nil)
	return n.Total, err
}

func (a *API) Login(ctx context.Context, req model.LoginRequest) (model.TokenResponse, error) {
	return apiclient.Do[model.TokenResponse](ctx, a.c, http.MethodPost, "/auth/login", req)
}

func (a *API) Register(ctx context.Context, req model.RegisterRequest) (model.TokenResponse, error) {
	return apiclient.Do[model.TokenResponse](ctx, a.c, http.MethodPost, "/auth/register", req)
}

// Logout revokes refreshToken on the server. It answers with a message only.
func (a *API) Logout(ctx context.Context, refreshToken string) error {
	return apiclient.DoVoid(ctx, a.c, http.MethodPost, "/auth/logout", model.LogoutRequest{RefreshToken: refreshToken})
}

// Me returns the user the current access token belongs to.
func (a *API) Me(ctx context.Context) (model.User, error) {
	return apiclient.Do[model.User](ctx, a.c, http.MethodGet, "/auth/me", nil)
}
