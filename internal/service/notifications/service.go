package notifications

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gobarber/backend/internal/domain"
	"gobarber/backend/internal/store"
)

const Limit = 20

var ErrNotProvider = errors.New("only providers can load notifications")

var tracer = otel.Tracer("gobarber/backend/internal/service/notifications")

type UserLookup interface {
	ByID(ctx context.Context, id int64) (domain.User, error)
}

type Service struct {
	users UserLookup
	inbox store.NotificationReader
}

func NewService(users UserLookup, inbox store.NotificationReader) *Service {
	return &Service{users: users, inbox: inbox}
}

// List returns the newest notifications addressed to the requester, who must be
// a provider.
func (s *Service) List(ctx context.Context, requesterID int64) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "notifications.List", trace.WithAttributes(
		attribute.Int64("requester_id", requesterID),
	))
	defer span.End()

	rows, err := s.list(ctx, requesterID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return rows, err
}

func (s *Service) list(ctx context.Context, requesterID int64) ([]domain.Notification, error) {
	u, err := s.users.ByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotProvider
		}
		return nil, fmt.Errorf("lookup requester: %w", err)
	}
	if !u.IsProvider {
		return nil, ErrNotProvider
	}
	return s.inbox.ListByUser(ctx, requesterID, Limit)
}
