package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden directories by default")
	assert.Equal(t, 500*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, 2, opts.MaxDepth)
	assert.Equal(t, []string{"metadata.db", "metadata.db-wal"}, opts.Targets)
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden: false,
		SettleDelay:  200 * time.Millisecond,
		MaxDepth:     1,
		Targets:      []string{"library.db"},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden, "Custom ignore hidden should be preserved")
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, 1, opts.MaxDepth)
	assert.Equal(t, []string{"library.db"}, opts.Targets)
}

func TestOptions_IsTarget(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.isTarget("/books/Fiction/metadata.db"))
	assert.True(t, opts.isTarget("/books/metadata.db-wal"))
	assert.False(t, opts.isTarget("/books/metadata.db-journal"))
	assert.False(t, opts.isTarget("/books/Fiction/Dune/cover.jpg"))
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{IgnoreHidden: true, Targets: []string{}}

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"hidden directory", ".caltrash/metadata.db", true},
		{"hidden nested", "Fiction/.git/metadata.db", true},
		{"normal path", "Fiction/metadata.db", false},
		{"root", ".", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}

func TestOptions_ShouldIgnore_NoIgnoreHidden(t *testing.T) {
	opts := Options{IgnoreHidden: false, Targets: []string{}}
	opts.setDefaults()

	assert.False(t, opts.shouldIgnore(".caltrash/metadata.db"))
}
