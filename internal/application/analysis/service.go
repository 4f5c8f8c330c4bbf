package analysis

import (
	"context"
	"strings"

	"github.com/bryanwahyu/friendlens/internal/application"
	domain "github.com/bryanwahyu/friendlens/internal/domain/analysis"
	"github.com/bryanwahyu/friendlens/internal/domain/history"
)

// Service implements the end-to-end analyze use-case: validate the batch,
// call the upstream client, build a history record and persist it under the
// retention policy. Safe for concurrent use.
type Service struct {
	Client    domain.Client
	Repo      history.Repository
	Clock     application.Clock
	MinImages int
}

func NewService(client domain.Client, repo history.Repository, clock application.Clock, minImages int) *Service {
	if minImages <= 0 {
		minImages = 5
	}
	return &Service{Client: client, Repo: repo, Clock: clock, MinImages: minImages}
}

// Result of one successful analysis. Persisted is false when the upstream
// call succeeded but the history write did not; PersistErr then carries the
// storage error so callers can surface it instead of treating the request
// as fully successful.
type Result struct {
	Text       string
	Record     history.Record
	Persisted  bool
	PersistErr error
}

// Analyze runs one analysis request for the given identity.
func (s *Service) Analyze(ctx context.Context, username string, images []domain.Image) (*Result, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, history.ErrUnauthenticated
	}
	if len(images) < s.MinImages {
		return nil, &domain.InsufficientInputError{Min: s.MinImages, Got: len(images)}
	}

	text, err := s.Client.Analyze(ctx, images)
	if err != nil {
		return nil, err
	}

	rec := history.Record{
		ID:         history.NewRecordID(),
		Username:   username,
		ImageCount: len(images),
		Text:       text,
		CreatedAt:  s.Clock.Now().UTC(),
	}

	res := &Result{Text: text, Record: rec, Persisted: true}
	if err := s.Repo.Insert(ctx, rec); err != nil {
		// The upstream call already succeeded; return the report anyway
		// and flag the storage failure instead of swallowing it.
		res.Persisted = false
		res.PersistErr = err
	}
	return res, nil
}
