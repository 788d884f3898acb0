package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/travelblog/internal/blogapi"
	"github.com/and161185/travelblog/internal/model"
)

// Stats are the home page counters plus the latest posts.
type Stats struct {
	Posts    int          `json:"posts" yaml:"posts"`
	Users    int          `json:"users" yaml:"users"`
	Comments int          `json:"comments" yaml:"comments"`
	Latest   []model.Post `json:"latest" yaml:"latest"`
}

// StatsService loads the home page summary.
type StatsService interface {
	Load(ctx context.Context) (Stats, error)
}

type StatsServiceImpl struct {
	api StatsAPI
	log *zap.Logger
}

// NewStatsService constructs StatsService.
func NewStatsService(api StatsAPI, log *zap.Logger) *StatsServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsServiceImpl{api: api, log: log}
}

// Load fails only when the posts page fails. The user and comment counts are best-effort
// and stay 0 on error.
func (s *StatsServiceImpl) Load(ctx context.Context) (Stats, error) {
	posts, err := s.api.ListPosts(ctx, 1, blogapi.PostsPageSize)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Posts: posts.Total, Latest: posts.Posts}

	if n, err := s.api.UsersTotal(ctx); err != nil {
		s.log.Debug("users count unavailable", zap.Error(err))
	} else {
		st.Users = n
	}
	if n, err := s.api.CommentsTotal(ctx); err != nil {
		s.log.Debug("comments count unavailable", zap.Error(err))
	} else {
		st.Comments = n
	}
	return st, nil
}
