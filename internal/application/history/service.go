package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bryanwahyu/friendlens/internal/application"
	domain "github.com/bryanwahyu/friendlens/internal/domain/history"
)

// Archiver is an optional sink for export snapshots (object storage).
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte) error
}

// Service exposes identity-scoped reads, deletes and export over the
// history repository. Every operation requires a non-empty username.
type Service struct {
	Repo     domain.Repository
	Archiver Archiver
	Clock    application.Clock
}

func NewService(repo domain.Repository) *Service {
	return &Service{Repo: repo}
}

// ExportDocument is the stable export shape; it round-trips through the
// jsonfile store format so an export can be re-imported as a collection.
type ExportDocument struct {
	Items []domain.Record `json:"items"`
}

func (s *Service) List(ctx context.Context, username string) ([]domain.Record, error) {
	username, err := requireIdentity(username)
	if err != nil {
		return nil, err
	}
	return s.Repo.List(ctx, username)
}

func (s *Service) Get(ctx context.Context, username string, id domain.RecordID) (*domain.Record, error) {
	username, err := requireIdentity(username)
	if err != nil {
		return nil, err
	}
	return s.Repo.Get(ctx, username, id)
}

func (s *Service) DeleteOne(ctx context.Context, username string, id domain.RecordID) error {
	username, err := requireIdentity(username)
	if err != nil {
		return err
	}
	return s.Repo.DeleteOne(ctx, username, id)
}

func (s *Service) DeleteAll(ctx context.Context, username string) error {
	username, err := requireIdentity(username)
	if err != nil {
		return err
	}
	return s.Repo.DeleteAll(ctx, username)
}

// Export serializes the caller's records newest-first. When an archiver is
// configured a snapshot copy is uploaded as well; archive failure is logged
// and never fails the export.
func (s *Service) Export(ctx context.Context, username string) ([]byte, error) {
	username, err := requireIdentity(username)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.List(ctx, username)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Record{}
	}
	data, err := json.MarshalIndent(ExportDocument{Items: items}, "", "  ")
	if err != nil {
		return nil, err
	}

	if s.Archiver != nil {
		now := time.Now().UTC()
		if s.Clock != nil {
			now = s.Clock.Now().UTC()
		}
		key := fmt.Sprintf("%s/%s.json", username, now.Format("20060102T150405Z"))
		if err := s.Archiver.Archive(ctx, key, data); err != nil {
			slog.Error("export archive upload failed", "username", username, "key", key, "error", err)
		}
	}
	return data, nil
}

func requireIdentity(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", domain.ErrUnauthenticated
	}
	return username, nil
}
