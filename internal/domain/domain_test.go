package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_CanEdit(t *testing.T) {
	run := &Run{Username: "alice"}

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"owner", User{Username: "alice"}, true},
		{"moderator", User{Username: "mod", IsMod: true}, true},
		{"stranger", User{Username: "bob"}, false},
		{"case differs", User{Username: "Alice"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.CanEdit(run))
		})
	}
}

func TestCategoryInfo_HeldBy(t *testing.T) {
	record := 3700
	info := CategoryInfo{Name: "Any%", BestKnownSeconds: &record, BestKnownRunner: "alice"}

	assert.True(t, info.HasRecord())
	assert.True(t, info.HeldBy("alice", 3700))
	assert.False(t, info.HeldBy("alice", 3699))
	assert.False(t, info.HeldBy("bob", 3700))

	empty := CategoryInfo{Name: "100%"}
	assert.False(t, empty.HasRecord())
	assert.False(t, empty.HeldBy("alice", 3700))
}

func TestEntity_Timestamps(t *testing.T) {
	var e Entity
	e.InitTimestamps()
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	e.Touch()
	assert.False(t, e.UpdatedAt.Before(e.CreatedAt))
}

func TestRun_KeyAndSummary(t *testing.T) {
	run := &Run{Entity: Entity{ID: "run-1"}, GameCode: "supergame", CategoryCode: "any", Game: "Super Game", Category: "Any%", Seconds: 3723}

	assert.Equal(t, "supergame/any", run.Key().String())
	s := run.Summary()
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 3723, s.Seconds)
	assert.Equal(t, "Any%", s.Category)
}
