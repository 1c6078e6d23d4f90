package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantOffset int
	}{
		{"absent", "", 1, 0},
		{"explicit", "page=3", 3, 32},
		{"non-numeric", "page=abc", 1, 0},
		{"zero", "page=0", 1, 0},
		{"negative", "page=-2", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p := FromQuery(q, 16)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, 16, p.PerPage)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 16))
	assert.Equal(t, 1, TotalPages(1, 16))
	assert.Equal(t, 1, TotalPages(16, 16))
	assert.Equal(t, 2, TotalPages(17, 16))
	assert.Equal(t, 3, TotalPages(40, 16))
	assert.Equal(t, 0, TotalPages(10, 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(0, 3))
	assert.Equal(t, 2, Clamp(2, 3))
	assert.Equal(t, 3, Clamp(9, 3))
	assert.Equal(t, 1, Clamp(4, 0))
}
