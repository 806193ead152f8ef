// Package membership lists and removes registered users.
package membership

import (
	"context"

	"go.uber.org/zap"

	"github.com/padraicbc/library/logger"
	"github.com/padraicbc/library/models"
)

// MemberStore is the part of the users collection the Service needs.
type MemberStore interface {
	List(ctx context.Context) ([]models.Member, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Service implements listing and deleting members.
type Service struct {
	members MemberStore
	log     *zap.Logger
}

// NewService returns a Service over members.
func NewService(members MemberStore, log *zap.Logger) *Service {
	return &Service{members: members, log: logger.OrNop(log).Named("membership")}
}

// ListMembers returns id, username and email of every user.
func (s *Service) ListMembers(ctx context.Context) ([]models.Member, error) {
	return s.members.List(ctx)
}

// DeleteMember removes the user if present and reports whether it was.
func (s *Service) DeleteMember(ctx context.Context, id int64) (bool, error) {
	removed, err := s.members.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info("member deleted", zap.Int64("user_id", id))
	}
	return removed, nil
}
