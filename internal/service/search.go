package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pbtracker/pbtracker-server/internal/search"
	"github.com/pbtracker/pbtracker-server/internal/store"
)

// SearchService keeps the game search index in step with the catalog and
// answers autocomplete queries.
type SearchService struct {
	index  *search.GameIndex
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.GameIndex, store store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Search looks up games by name, typo tolerant, with prefix completion.
func (s *SearchService) Search(ctx context.Context, query string, limit int) (*search.SearchResult, error) {
	return s.index.Search(ctx, search.SearchParams{Query: query, Limit: limit, Highlight: true})
}

// IndexGame re-reads a game from the store and replaces its document.
// Call this when a game or one of its categories is created.
func (s *SearchService) IndexGame(ctx context.Context, code string) error {
	game, err := s.store.GetGame(ctx, code)
	if err != nil {
		return fmt.Errorf("load game %s: %w", code, err)
	}

	if err := s.index.IndexGame(search.NewGameDocument(game, s.now().UnixMilli())); err != nil {
		return fmt.Errorf("index game %s: %w", code, err)
	}

	s.logger.Debug("indexed game", "code", game.Code, "name", game.Name)
	return nil
}

// Reindex rebuilds the index from the full catalog and returns the number
// of games indexed.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	start := s.now()

	games, err := s.store.ListGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}

	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	millis := s.now().UnixMilli()
	docs := make([]*search.GameDocument, 0, len(games))
	for _, g := range games {
		docs = append(docs, search.NewGameDocument(g, millis))
	}
	if err := s.index.IndexGames(docs); err != nil {
		return 0, fmt.Errorf("index games: %w", err)
	}

	s.logger.Info("search index rebuilt", "games", len(docs), "duration", time.Since(start))
	return len(docs), nil
}

// EnsureIndexed rebuilds the index when it is empty but the catalog is not,
// which happens on first start and after a mapping version change.
func (s *SearchService) EnsureIndexed(ctx context.Context) error {
	count, err := s.index.DocumentCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.Reindex(ctx)
	return err
}

// DocumentCount reports how many games are indexed.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}
