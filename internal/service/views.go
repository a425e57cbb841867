package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/pbtracker/pbtracker-server/internal/catalog"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	domainerrors "github.com/pbtracker/pbtracker-server/internal/errors"
	"github.com/pbtracker/pbtracker-server/internal/normalize"
	"github.com/pbtracker/pbtracker-server/internal/store"
)

// RunnerPage is a runner's public page: personal bests by default, every
// run when ViewAll is set.
type RunnerPage struct {
	Runner        string                `json:"runner"`
	ViewAll       bool                  `json:"view_all"`
	PersonalBests []domain.PersonalBest `json:"personal_bests,omitempty"`
	Runs          []domain.RunSummary   `json:"runs,omitempty"`
}

// ViewService serves the derived per-runner views and the autocomplete map.
// The cache is read through: a miss or a cache failure falls back to
// computing from the store.
//
// A runner's views are read from the store and cached under that runner's
// lock, so a refresh that started after a commit is always the last to
// write. The categories map follows the same rule under catMu.
type ViewService struct {
	store   store.Store
	cache   *store.ViewCache
	runners *catalog.KeyedMutex
	catMu   sync.Mutex
	logger  *slog.Logger
}

// NewViewService creates a new view service.
func NewViewService(store store.Store, cache *store.ViewCache, logger *slog.Logger) *ViewService {
	return &ViewService{
		store:   store,
		cache:   cache,
		runners: catalog.NewKeyedMutex(),
		logger:  logger,
	}
}

// RunnerPage resolves a runner by name (any spelling that folds to the same
// code) and returns their page.
func (s *ViewService) RunnerPage(ctx context.Context, username string, viewAll bool) (*RunnerPage, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("no runner named %q", username)
		}
		return nil, fmt.Errorf("load runner: %w", err)
	}

	page := &RunnerPage{Runner: user.Username, ViewAll: viewAll}
	if viewAll {
		page.Runs, err = s.RunList(ctx, user.Username)
	} else {
		page.PersonalBests, err = s.PersonalBests(ctx, user.Username)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// PersonalBests returns the runner's fastest run per game category.
func (s *ViewService) PersonalBests(ctx context.Context, username string) ([]domain.PersonalBest, error) {
	if pbs, ok, err := s.cache.PersonalBests(username); err != nil {
		s.logger.Warn("personal bests cache read failed", "runner", username, "error", err)
	} else if ok {
		return pbs, nil
	}

	pbs, _, err := s.Refresh(ctx, username)
	return pbs, err
}

// RunList returns every run of the runner, newest first.
func (s *ViewService) RunList(ctx context.Context, username string) ([]domain.RunSummary, error) {
	if runs, ok, err := s.cache.RunList(username); err != nil {
		s.logger.Warn("run list cache read failed", "runner", username, "error", err)
	} else if ok {
		return runs, nil
	}

	_, runs, err := s.Refresh(ctx, username)
	return runs, err
}

// Refresh recomputes both views of a runner from the store and caches them.
// A cache write failure drops the entries instead so that readers recompute.
func (s *ViewService) Refresh(ctx context.Context, username string) ([]domain.PersonalBest, []domain.RunSummary, error) {
	unlock := s.runners.LockNames(normalize.Code(username))
	defer unlock()

	runs, err := s.store.ListRunsForRunner(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("list runs for %s: %w", username, err)
	}

	pbs := BuildPersonalBests(runs)
	list := make([]domain.RunSummary, 0, len(runs))
	for _, r := range runs {
		list = append(list, r.Summary())
	}

	if err := s.cache.SetPersonalBests(username, pbs); err != nil {
		s.logger.Warn("personal bests cache write failed", "runner", username, "error", err)
		s.Invalidate(username)
		return pbs, list, nil
	}
	if err := s.cache.SetRunList(username, list); err != nil {
		s.logger.Warn("run list cache write failed", "runner", username, "error", err)
		s.Invalidate(username)
	}

	return pbs, list, nil
}

// Invalidate drops the cached views of a runner.
func (s *ViewService) Invalidate(username string) {
	if err := s.cache.InvalidateRunner(username); err != nil {
		s.logger.Error("runner view invalidation failed", "runner", username, "error", err)
	}
}

// Categories returns game display name to category display names, in
// catalog order, for the submit form autocomplete.
func (s *ViewService) Categories(ctx context.Context) (map[string][]string, error) {
	if m, ok, err := s.cache.Categories(); err != nil {
		s.logger.Warn("categories cache read failed", "error", err)
	} else if ok {
		return m, nil
	}

	s.catMu.Lock()
	defer s.catMu.Unlock()

	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	m := make(map[string][]string, len(games))
	for _, g := range games {
		names := make([]string, 0, len(g.Categories))
		for _, c := range g.Categories {
			names = append(names, c.Name)
		}
		m[g.Name] = names
	}

	if err := s.cache.SetCategories(m); err != nil {
		s.logger.Warn("categories cache write failed", "error", err)
	}
	return m, nil
}

// InvalidateCategories drops the cached autocomplete map. It waits for a
// rebuild in progress so that the rebuild cannot cache a map read before
// the catalog changed.
func (s *ViewService) InvalidateCategories() {
	s.catMu.Lock()
	defer s.catMu.Unlock()

	if err := s.cache.InvalidateCategories(); err != nil {
		s.logger.Error("categories invalidation failed", "error", err)
	}
}

// BuildPersonalBests reduces runs (newest first, as the store lists them) to
// the fastest run per category. A tie goes to the earlier run. The result is
// ordered by game then category name, case-insensitively.
func BuildPersonalBests(runs []*domain.Run) []domain.PersonalBest {
	best := make(map[domain.CategoryKey]*domain.PersonalBest)
	counts := make(map[domain.CategoryKey]int)

	for _, r := range runs {
		key := r.Key()
		counts[key]++
		if cur, ok := best[key]; ok && cur.Seconds < r.Seconds {
			continue
		}
		best[key] = &domain.PersonalBest{
			Game:         r.Game,
			GameCode:     r.GameCode,
			Category:     r.Category,
			CategoryCode: r.CategoryCode,
			RunID:        r.ID,
			Seconds:      r.Seconds,
			Date:         r.Date,
			Video:        r.Video,
			IsBestKnown:  r.IsBestKnown,
		}
	}

	pbs := make([]domain.PersonalBest, 0, len(best))
	for key, pb := range best {
		pb.NumRuns = counts[key]
		pbs = append(pbs, *pb)
	}

	slices.SortFunc(pbs, func(a, b domain.PersonalBest) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Game), strings.ToLower(b.Game)),
			strings.Compare(strings.ToLower(a.Category), strings.ToLower(b.Category)),
			strings.Compare(a.GameCode+"/"+a.CategoryCode, b.GameCode+"/"+b.CategoryCode),
		)
	})
	return pbs
}
