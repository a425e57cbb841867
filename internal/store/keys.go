package store

import "github.com/pbtracker/pbtracker-server/internal/normalize"

// Cache key prefixes. Runner keys use the folded username so the runner
// page URL and the display name address the same entry.
const (
	personalBestsPrefix = "pblist:"
	runListPrefix       = "runlist:"
	categoriesKey       = "categories"
)

func personalBestsKey(username string) []byte {
	return []byte(personalBestsPrefix + normalize.Code(username))
}

func runListKey(username string) []byte {
	return []byte(runListPrefix + normalize.Code(username))
}
