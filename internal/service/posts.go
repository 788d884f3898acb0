package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/travelblog/internal/blogapi"
	"github.com/and161185/travelblog/internal/convert"
	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/model"
	"github.com/and161185/travelblog/internal/paging"
)

// PostService defines post browsing and editing.
type PostService interface {
	// List returns a controller over published posts (userID 0) or over one author's posts.
	List(userID int64, pageSize int) *paging.Controller[model.Post]
	Get(ctx context.Context, id int64) (model.Post, error)
	Create(ctx context.Context, req model.CreatePostRequest) (model.Post, error)
	Update(ctx context.Context, id int64, req model.UpdatePostRequest) (model.Post, error)
	Delete(ctx context.Context, id int64) error
}

type PostServiceImpl struct {
	api PostAPI
	log *zap.Logger
}

// NewPostService constructs PostService.
func NewPostService(api PostAPI, log *zap.Logger) *PostServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostServiceImpl{api: api, log: log}
}

// List picks the default page size of the listing when pageSize <= 0.
func (s *PostServiceImpl) List(userID int64, pageSize int) *paging.Controller[model.Post] {
	if userID > 0 {
		if pageSize <= 0 {
			pageSize = blogapi.UserPostsPageSize
		}
		fetch := func(ctx context.Context, page, size int) (model.PostsList, error) {
			return s.api.PostsByUser(ctx, userID, page, size)
		}
		return paging.New(convert.PostsFetch(fetch), pageSize,
			paging.WithName(fmt.Sprintf("posts:user:%d", userID)), paging.WithLogger(s.log))
	}
	if pageSize <= 0 {
		pageSize = blogapi.PostsPageSize
	}
	return paging.New(convert.PostsFetch(s.api.ListPosts), pageSize,
		paging.WithName("posts"), paging.WithLogger(s.log))
}

func (s *PostServiceImpl) Get(ctx context.Context, id int64) (model.Post, error) {
	if id <= 0 {
		return model.Post{}, fmt.Errorf("%w: post id must be positive", errs.ErrInvalidInput)
	}
	return s.api.GetPost(ctx, id)
}

// Create validates:
// - title and content are not blank
// - status, if set, is draft or published
func (s *PostServiceImpl) Create(ctx context.Context, req model.CreatePostRequest) (model.Post, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		return model.Post{}, fmt.Errorf("%w: title and content are required", errs.ErrInvalidInput)
	}
	if req.Status == "" {
		req.Status = model.StatusPublished
	}
	if !req.Status.Valid() {
		return model.Post{}, fmt.Errorf("%w: unknown status %q", errs.ErrInvalidInput, req.Status)
	}
	return s.api.CreatePost(ctx, req)
}

// Update applies the same rules as Create to the fields that are set.
func (s *PostServiceImpl) Update(ctx context.Context, id int64, req model.UpdatePostRequest) (model.Post, error) {
	if id <= 0 {
		return model.Post{}, fmt.Errorf("%w: post id must be positive", errs.ErrInvalidInput)
	}
	var err error
	if req.Title, err = trimmedField("title", req.Title); err != nil {
		return model.Post{}, err
	}
	if req.Content, err = trimmedField("content", req.Content); err != nil {
		return model.Post{}, err
	}
	if req.Status != nil && !req.Status.Valid() {
		return model.Post{}, fmt.Errorf("%w: unknown status %q", errs.ErrInvalidInput, *req.Status)
	}
	if req == (model.UpdatePostRequest{}) {
		return model.Post{}, fmt.Errorf("%w: nothing to update", errs.ErrInvalidInput)
	}
	return s.api.UpdatePost(ctx, id, req)
}

func (s *PostServiceImpl) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: post id must be positive", errs.ErrInvalidInput)
	}
	return s.api.DeletePost(ctx, id)
}

// trimmedField returns a trimmed copy of an optional field; set but blank is an error.
func trimmedField(name string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, fmt.Errorf("%w: %s must not be empty", errs.ErrInvalidInput, name)
	}
	return &t, nil
}

// CanEdit reports whether me may edit or delete p: admins always, others only their own posts.
func CanEdit(me *model.User, p model.Post) bool {
	if me == nil {
		return false
	}
	return me.IsAdmin() || me.ID == p.UserID
}

// ParseID parses a numeric identifier taken from user input.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a valid id", errs.ErrInvalidInput, s)
	}
	return id, nil
}
