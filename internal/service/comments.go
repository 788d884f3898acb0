package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/travelblog/internal/blogapi"
	"github.com/and161185/travelblog/internal/convert"
	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/model"
	"github.com/and161185/travelblog/internal/paging"
)

// CommentService defines reading and writing comment threads.
type CommentService interface {
	// List returns a controller over the top-level comments of a post.
	List(postID int64, pageSize int) *paging.Controller[model.Comment]
	// Submit posts a comment or a reply and reloads list from its first page.
	Submit(ctx context.Context, list *paging.Controller[model.Comment], postID int64, content string, parentID *int64) (model.Comment, error)
}

type CommentServiceImpl struct {
	api     CommentAPI
	session Session
	log     *zap.Logger
}

// NewCommentService constructs CommentService.
func NewCommentService(api CommentAPI, session Session, log *zap.Logger) *CommentServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommentServiceImpl{api: api, session: session, log: log}
}

func (s *CommentServiceImpl) List(postID int64, pageSize int) *paging.Controller[model.Comment] {
	if pageSize <= 0 {
		pageSize = blogapi.CommentsPageSize
	}
	fetch := func(ctx context.Context, page, size int) (model.CommentsList, error) {
		return s.api.ListComments(ctx, postID, page, size)
	}
	return paging.New(convert.CommentsFetch(fetch), pageSize,
		paging.WithName(fmt.Sprintf("comments:%d", postID)), paging.WithLogger(s.log))
}

// Submit rejects blank content and a missing session before any request. list may be nil.
// A failed reload does not fail the submit; it is visible in the list snapshot.
func (s *CommentServiceImpl) Submit(ctx context.Context, list *paging.Controller[model.Comment], postID int64, content string, parentID *int64) (model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, fmt.Errorf("%w: comment is empty", errs.ErrInvalidInput)
	}
	if postID <= 0 || (parentID != nil && *parentID <= 0) {
		return model.Comment{}, fmt.Errorf("%w: bad post or parent id", errs.ErrInvalidInput)
	}
	if !s.session.Authenticated(ctx) {
		return model.Comment{}, errs.ErrNotAuthenticated
	}
	c, err := s.api.CreateComment(ctx, postID, model.CreateCommentRequest{Content: content, ParentID: parentID})
	if err != nil {
		return model.Comment{}, err
	}
	if list != nil {
		if err := list.Reload(ctx); err != nil {
			s.log.Warn("comments reload failed", zap.Int64("post_id", postID), zap.Error(err))
		}
	}
	return c, nil
}
