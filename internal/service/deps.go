package service

import (
	"context"

	"github.com/and161185/travelblog/internal/model"
)

// Session is the token holder the flows read and write. *session.Store implements it.
type Session interface {
	SetSession(ctx context.Context, access, refresh string) error
	ClearSession(ctx context.Context) error
	RefreshToken(ctx context.Context) string
	Authenticated(ctx context.Context) bool
}

// AuthAPI is the subset of blogapi.API used by AuthService.
type AuthAPI interface {
	Login(ctx context.Context, req model.LoginRequest) (model.TokenResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (model.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context) (model.User, error)
}

// PostAPI is the subset of blogapi.API used by PostService.
type PostAPI interface {
	ListPosts(ctx context.Context, page, pageSize int) (model.PostsList, error)
	PostsByUser(ctx context.Context, userID int64, page, pageSize int) (model.PostsList, error)
	GetPost(ctx context.Context, id int64) (model.Post, error)
	CreatePost(ctx context.Context, req model.CreatePostRequest) (model.Post, error)
	UpdatePost(ctx context.Context, id int64, req model.UpdatePostRequest) (model.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// CommentAPI is the subset of blogapi.API used by CommentService.
type CommentAPI interface {
	ListComments(ctx context.Context, postID int64, page, pageSize int) (model.CommentsList, error)
	CreateComment(ctx context.Context, postID int64, req model.CreateCommentRequest) (model.Comment, error)
}

// StatsAPI is the subset of blogapi.API used by StatsService.
type StatsAPI interface {
	ListPosts(ctx context.Context, page, pageSize int) (model.PostsList, error)
	CommentsTotal(ctx context.Context) (int, error)
	UsersTotal(ctx context.Context) (int, error)
}
