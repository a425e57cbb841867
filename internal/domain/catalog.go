package domain

// Game is a catalog entry: one per normalized game code.
// Categories keep the order in which they were first submitted.
type Game struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Categories []CategoryInfo `json:"categories"`
}

// CategoryInfo is one category of a game and its best known time record.
type CategoryInfo struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	BestKnownSeconds *int   `json:"best_known_seconds,omitempty"`
	BestKnownRunner  string `json:"best_known_runner,omitempty"`
}

// HasRecord reports whether a best known time has been recorded.
func (c *CategoryInfo) HasRecord() bool {
	return c.BestKnownSeconds != nil
}

// HeldBy reports whether runner holds the record at exactly seconds.
func (c *CategoryInfo) HeldBy(runner string, seconds int) bool {
	return c.HasRecord() && *c.BestKnownSeconds == seconds && c.BestKnownRunner == runner
}
