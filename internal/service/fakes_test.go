package service

import (
	"context"
	"errors"
	"sync"

	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/model"
)

type fakeSession struct {
	mu     sync.Mutex
	tokens model.Tokens

	setErr   error
	clearErr error

	sets, clears int
}

var _ Session = (*fakeSession)(nil)

func (f *fakeSession) SetSession(_ context.Context, access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.sets++
	f.tokens = model.Tokens{AccessToken: access, RefreshToken: refresh}
	return nil
}
func (f *fakeSession) ClearSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clears++
	f.tokens = model.Tokens{}
	return nil
}
func (f *fakeSession) RefreshToken(context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens.RefreshToken
}
func (f *fakeSession) Authenticated(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens.AccessToken != ""
}

// fakeAPI implements every accessor interface with canned data and call counters.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	user      model.User
	loginErr  error
	regErr    error
	logoutErr error
	meErr     error

	posts    []model.Post
	postsErr error
	lastUser int64
	created  []model.CreatePostRequest
	updated  []model.UpdatePostRequest

	comments   []model.Comment
	commentErr error
	lastReq    model.CreateCommentRequest

	usersTotal, commentsTotal int
	usersErr, commentsErr     error
}

var (
	_ AuthAPI    = (*fakeAPI)(nil)
	_ PostAPI    = (*fakeAPI)(nil)
	_ CommentAPI = (*fakeAPI)(nil)
	_ StatsAPI   = (*fakeAPI)(nil)
)

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Login(_ context.Context, req model.LoginRequest) (model.TokenResponse, error) {
	f.hit("login")
	if f.loginErr != nil {
		return model.TokenResponse{}, f.loginErr
	}
	return model.TokenResponse{AccessToken: "acc-" + req.Email, RefreshToken: "ref-" + req.Email, User: f.user}, nil
}
func (f *fakeAPI) Register(_ context.Context, req model.RegisterRequest) (model.TokenResponse, error) {
	f.hit("register")
	if f.regErr != nil {
		return model.TokenResponse{}, f.regErr
	}
	u := f.user
	u.Username = req.Username
	return model.TokenResponse{AccessToken: "acc", RefreshToken: "ref", User: u}, nil
}
func (f *fakeAPI) Logout(context.Context, string) error { f.hit("logout"); return f.logoutErr }
func (f *fakeAPI) Me(context.Context) (model.User, error) {
	f.hit("me")
	return f.user, f.meErr
}

func (f *fakeAPI) page(page, size int) model.PostsList {
	from := (page - 1) * size
	to := from + size
	if from > len(f.posts) {
		from = len(f.posts)
	}
	if to > len(f.posts) {
		to = len(f.posts)
	}
	return model.PostsList{Posts: f.posts[from:to], Total: len(f.posts), Page: page, PageSize: size}
}

func (f *fakeAPI) ListPosts(_ context.Context, page, size int) (model.PostsList, error) {
	f.hit("list")
	if f.postsErr != nil {
		return model.PostsList{}, f.postsErr
	}
	return f.page(page, size), nil
}
func (f *fakeAPI) PostsByUser(_ context.Context, userID int64, page, size int) (model.PostsList, error) {
	f.hit("by-user")
	f.lastUser = userID
	return f.page(page, size), nil
}
func (f *fakeAPI) GetPost(_ context.Context, id int64) (model.Post, error) {
	f.hit("get")
	for _, p := range f.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Post{}, &errs.APIError{Status: 404, Message: "post not found"}
}
func (f *fakeAPI) CreatePost(_ context.Context, req model.CreatePostRequest) (model.Post, error) {
	f.hit("create")
	f.created = append(f.created, req)
	return model.Post{ID: 100, Title: req.Title, Content: req.Content, Status: req.Status}, nil
}
func (f *fakeAPI) UpdatePost(_ context.Context, id int64, req model.UpdatePostRequest) (model.Post, error) {
	f.hit("update")
	f.updated = append(f.updated, req)
	return model.Post{ID: id}, nil
}
func (f *fakeAPI) DeletePost(context.Context, int64) error { f.hit("delete"); return nil }

func (f *fakeAPI) ListComments(_ context.Context, _ int64, page, size int) (model.CommentsList, error) {
	f.hit("comments")
	f.mu.Lock()
	defer f.mu.Unlock()
	from := (page - 1) * size
	if from > len(f.comments) {
		from = len(f.comments)
	}
	to := from + size
	if to > len(f.comments) {
		to = len(f.comments)
	}
	return model.CommentsList{Comments: f.comments[from:to], Total: len(f.comments), Page: page, PageSize: size}, nil
}
func (f *fakeAPI) CreateComment(_ context.Context, postID int64, req model.CreateCommentRequest) (model.Comment, error) {
	f.hit("comment")
	if f.commentErr != nil {
		return model.Comment{}, f.commentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	c := model.Comment{ID: int64(len(f.comments) + 1), PostID: postID, Content: req.Content, ParentID: req.ParentID}
	f.comments = append([]model.Comment{c}, f.comments...)
	return c, nil
}

func (f *fakeAPI) UsersTotal(context.Context) (int, error) {
	f.hit("users-total")
	return f.usersTotal, f.usersErr
}
func (f *fakeAPI) CommentsTotal(context.Context) (int, error) {
	f.hit("comments-total")
	return f.commentsTotal, f.commentsErr
}

var errBoom = errors.New("boom")
