package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pbtracker/pbtracker-server/internal/catalog"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	domainerrors "github.com/pbtracker/pbtracker-server/internal/errors"
	"github.com/pbtracker/pbtracker-server/internal/normalize"
	"github.com/pbtracker/pbtracker-server/internal/store"
	"github.com/pbtracker/pbtracker-server/internal/timefmt"
	"github.com/pbtracker/pbtracker-server/internal/validation"
)

// CatalogFile is the YAML document accepted by Import:
//
//	games:
//	  - name: Super Metroid
//	    categories:
//	      - name: Any%
//	        best_known: "41:20"
//	        runner: alice
//	      - name: 100%
type CatalogFile struct {
	Games []CatalogGame `yaml:"games" json:"games" validate:"required,min=1,dive"`
}

// CatalogGame is one game of a catalog file.
type CatalogGame struct {
	Name       string            `yaml:"name" json:"name" validate:"required,max=100"`
	Categories []CatalogCategory `yaml:"categories" json:"categories" validate:"dive"`
}

// CatalogCategory is one category of a catalog file. BestKnown takes any
// time format the submit form accepts.
type CatalogCategory struct {
	Name      string `yaml:"name" json:"name" validate:"required,max=100"`
	BestKnown string `yaml:"best_known" json:"best_known"`
	Runner    string `yaml:"runner" json:"runner" validate:"required_with=BestKnown"`
}

// ImportReport summarizes an import.
type ImportReport struct {
	Games             int `json:"games"`
	GamesCreated      int `json:"games_created"`
	CategoriesCreated int `json:"categories_created"`
	RecordsSet        int `json:"records_set"`
	// Renamed counts names replaced by the display name already in the
	// catalog under the same code.
	Renamed int `json:"renamed"`
}

// CatalogService seeds and extends the game catalog outside of run
// submissions.
type CatalogService struct {
	store     store.Store
	views     *ViewService
	search    *SearchService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	store store.Store,
	views *ViewService,
	search *SearchService,
	validator *validation.Validator,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		store:     store,
		views:     views,
		search:    search,
		validator: validator,
		logger:    logger,
	}
}

// ListGames returns the whole catalog ordered by name.
func (s *CatalogService) ListGames(ctx context.Context) ([]*domain.Game, error) {
	return s.store.ListGames(ctx)
}

// Import reads a catalog file and merges it into the catalog. Names follow
// the submission rules: a name whose code already exists is replaced by the
// stored display name, and an imported record only replaces a slower one.
// The whole file is checked before anything is written.
func (s *CatalogService) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	var file CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "parse catalog file")
	}

	if err := s.validator.Validate(&file); err != nil {
		return nil, err
	}

	games, err := s.parse(file)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{Games: len(games)}
	for _, g := range games {
		renamed, err := s.adoptStoredNames(ctx, g)
		if err != nil {
			return report, err
		}
		report.Renamed += renamed

		outcome, err := s.store.ImportGame(ctx, g)
		if err != nil {
			if errors.Is(err, store.ErrCatalogChanged) {
				return report, domainerrors.Conflictf("game %q changed during import", g.Name)
			}
			return report, fmt.Errorf("import %s: %w", g.Code, err)
		}

		if outcome.GameCreated {
			report.GamesCreated++
		}
		if outcome.CategoryCreated {
			report.CategoriesCreated++
		}
		if outcome.RecordSet {
			report.RecordsSet++
		}

		if s.search != nil && (outcome.GameCreated || outcome.CategoryCreated) {
			if err := s.search.IndexGame(ctx, g.Code); err != nil {
				s.logger.Warn("search index update failed", "game_code", g.Code, "error", err)
			}
		}
	}

	s.views.InvalidateCategories()

	s.logger.Info("catalog imported",
		"games", report.Games,
		"games_created", report.GamesCreated,
		"categories_created", report.CategoriesCreated,
		"records_set", report.RecordsSet,
		"renamed", report.Renamed)
	return report, nil
}

// parse turns a validated file into catalog entries, collecting every name
// and time problem.
func (s *CatalogService) parse(file CatalogFile) ([]*domain.Game, error) {
	problems := make(map[string]string)
	byCode := make(map[string]*domain.Game)
	var games []*domain.Game

	for i, fg := range file.Games {
		name := strings.TrimSpace(fg.Name)
		code := normalize.Code(name)
		field := fmt.Sprintf("games[%d].name", i)
		if code == "" || !normalize.ValidName(name) {
			problems[field] = fmt.Sprintf("invalid game name %q", fg.Name)
			continue
		}

		g, ok := byCode[code]
		if !ok {
			g = &domain.Game{Code: code, Name: name}
			byCode[code] = g
			games = append(games, g)
		}

		for j, fc := range fg.Categories {
			cname := strings.TrimSpace(fc.Name)
			ccode := normalize.Code(cname)
			cfield := fmt.Sprintf("games[%d].categories[%d]", i, j)
			if ccode == "" || !normalize.ValidName(cname) {
				problems[cfield+".name"] = fmt.Sprintf("invalid category name %q", fc.Name)
				continue
			}

			info := domain.CategoryInfo{Code: ccode, Name: cname}
			if fc.BestKnown != "" {
				seconds, err := timefmt.ParseDuration(fc.BestKnown)
				if err != nil {
					problems[cfield+".best_known"] = err.Error()
					continue
				}
				info.BestKnownSeconds = &seconds
				info.BestKnownRunner = strings.TrimSpace(fc.Runner)
			}

			if existing := catalog.FindCategory(g, ccode); existing != nil {
				// A repeated category keeps its first name and the faster record.
				if info.HasRecord() && (!existing.HasRecord() || *info.BestKnownSeconds < *existing.BestKnownSeconds) {
					existing.BestKnownSeconds = info.BestKnownSeconds
					existing.BestKnownRunner = info.BestKnownRunner
				}
				continue
			}
			g.Categories = append(g.Categories, info)
		}
	}

	if len(problems) > 0 {
		return nil, domainerrors.ValidationWithDetails("invalid catalog file", problems)
	}
	return games, nil
}

// adoptStoredNames replaces display names with the ones already stored under
// the same codes, returning how many were replaced.
func (s *CatalogService) adoptStoredNames(ctx context.Context, g *domain.Game) (int, error) {
	stored, err := catalog.FindGame(ctx, s.store, g.Code)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", g.Code, err)
	}
	if stored == nil {
		return 0, nil
	}

	renamed := 0
	if stored.Name != g.Name {
		s.logger.Info("import uses stored game name", "imported", g.Name, "stored", stored.Name)
		g.Name = stored.Name
		renamed++
	}
	for i := range g.Categories {
		c := &g.Categories[i]
		if sc := catalog.FindCategory(stored, c.Code); sc != nil && sc.Name != c.Name {
			c.Name = sc.Name
			renamed++
		}
	}
	return renamed, nil
}
