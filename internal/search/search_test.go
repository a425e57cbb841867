package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtracker/pbtracker-server/internal/domain"
)

func setupTestIndex(t *testing.T) *GameIndex {
	t.Helper()

	index, err := NewGameIndex(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func game(code, name string, categories ...string) *domain.Game {
	g := &domain.Game{Code: code, Name: name}
	for _, c := range categories {
		g.Categories = append(g.Categories, domain.CategoryInfo{Name: c})
	}
	return g
}

func seed(t *testing.T, index *GameIndex) {
	t.Helper()
	require.NoError(t, index.IndexGames([]*GameDocument{
		NewGameDocument(game("supermario64", "Super Mario 64", "120 Star", "16 Star"), 1),
		NewGameDocument(game("supermetroid", "Super Metroid", "Any%", "100%"), 2),
		NewGameDocument(game("portal", "Portal", "Inbounds"), 3),
	}))
}

func TestNewGameIndex_Empty(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestGameIndex_IndexGameReplaces(t *testing.T) {
	index := setupTestIndex(t)

	require.NoError(t, index.IndexGame(NewGameDocument(game("portal", "Portal"), 1)))
	require.NoError(t, index.IndexGame(NewGameDocument(game("portal", "Portal", "Glitchless"), 2)))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	res, err := index.Search(context.Background(), SearchParams{Query: "portal"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, []string{"Glitchless"}, res.Hits[0].Categories)
}

func TestGameIndex_Search(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	tests := []struct {
		name  string
		query string
		first string
		codes []string
	}{
		{"exact word", "metroid", "supermetroid", []string{"supermetroid"}},
		{"prefix of last word", "super mar", "supermario64", nil},
		{"typo", "portl", "portal", []string{"portal"}},
		{"category name", "inbounds", "portal", []string{"portal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := index.Search(context.Background(), SearchParams{Query: tt.query})
			require.NoError(t, err)
			require.NotEmpty(t, res.Hits)
			assert.Equal(t, tt.first, res.Hits[0].Code)
			if tt.codes != nil {
				var got []string
				for _, h := range res.Hits {
					got = append(got, h.Code)
				}
				assert.Equal(t, tt.codes, got)
			}
		})
	}
}

func TestGameIndex_EmptyQueryListsByCode(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "portal", res.Hits[0].Code)
	assert.Equal(t, "supermario64", res.Hits[1].Code)
	assert.Equal(t, "Super Mario 64", res.Hits[1].Name)
}

func TestGameIndex_DeleteAndRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.DeleteGame("portal"))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	require.NoError(t, index.Rebuild())
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewGameIndex_OnDiskReopen(t *testing.T) {
	dir := t.TempDir()

	index, err := NewGameIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexGame(NewGameDocument(game("portal", "Portal"), 1)))
	require.NoError(t, index.Close())

	reopened, err := NewGameIndex(Options{DataPath: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestStoredStrings(t *testing.T) {
	assert.Equal(t, []string{"a"}, storedStrings("a"))
	assert.Equal(t, []string{"a", "b"}, storedStrings([]any{"a", "b"}))
	assert.Nil(t, storedStrings(nil))
}
