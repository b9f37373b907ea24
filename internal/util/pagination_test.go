package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		page, size       int
		wantFrom, wantLn int
	}{
		{"first page", 1, 10, 0, 10},
		{"third page", 3, 10, 20, 10},
		{"page below one", 0, 5, 0, 5},
		{"size defaulted", 2, 0, DefaultPageSize, DefaultPageSize},
		{"size capped", 1, 1000, 0, DefaultPageSize},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			from, limit := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantLn, limit)
		})
	}
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
}

func TestNewMeta(t *testing.T) {
	m := NewMeta(2, 10, 10, 25)
	assert.EqualValues(t, 3, m.TotalPages)
	assert.True(t, m.HasPrev)
	assert.True(t, m.HasNext)

	m = NewMeta(3, 20, 10, 25)
	assert.False(t, m.HasNext)
}
