package providers

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"gobarber/backend/internal/domain"
	"gobarber/backend/internal/store"
)

var tracer = otel.Tracer("gobarber/backend/internal/service/providers")

type Service struct {
	users        store.UserRepository
	filesBaseURL string
}

func NewService(users store.UserRepository, filesBaseURL string) *Service {
	return &Service{users: users, filesBaseURL: filesBaseURL}
}

// List returns every provider ordered by name, with avatar URLs resolved.
func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "providers.List")
	defer span.End()

	rows, err := s.users.ListProviders(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for i := range rows {
		rows[i].Avatar.ResolveURL(s.filesBaseURL)
	}
	return rows, nil
}
