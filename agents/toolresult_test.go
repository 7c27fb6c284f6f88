package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolResult(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []GroundingFile
		wantErr  bool
	}{
		{
			name:     "single source",
			raw:      `{"sources":[{"chunk_id":"c1","title":"Doc A","chunk":"text"}]}`,
			expected: []GroundingFile{{ID: "c1", Name: "Doc A", Content: "text"}},
		},
		{
			name: "order is kept",
			raw:  `{"sources":[{"chunk_id":"b","title":"B","chunk":"2"},{"chunk_id":"a","title":"A","chunk":"1"}]}`,
			expected: []GroundingFile{
				{ID: "b", Name: "B", Content: "2"},
				{ID: "a", Name: "A", Content: "1"},
			},
		},
		{
			name:     "no sources",
			raw:      `{"sources":[]}`,
			expected: []GroundingFile{},
		},
		{
			name:     "unknown fields are ignored",
			raw:      `{"sources":[{"chunk_id":"c1","title":"T","chunk":"x","score":0.9}],"extra":true}`,
			expected: []GroundingFile{{ID: "c1", Name: "T", Content: "x"}},
		},
		{
			name:    "truncated json",
			raw:     `{"sources":[{"chunk_id":`,
			wantErr: true,
		},
		{
			name:    "empty payload",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "empty object",
			raw:     `{}`,
			wantErr: true,
		},
		{
			name:    "json null",
			raw:     `null`,
			wantErr: true,
		},
		{
			name:    "null sources",
			raw:     `{"sources":null}`,
			wantErr: true,
		},
		{
			name:    "other tool shape",
			raw:     `{"results":[1]}`,
			wantErr: true,
		},
		{
			name:    "sources of wrong type",
			raw:     `{"sources":"nope"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseToolResult("report_grounding", tt.raw)
			if tt.wantErr {
				var trErr *ToolResultError
				require.True(t, errors.As(err, &trErr))
				assert.Equal(t, tt.raw, trErr.Raw)
				assert.Equal(t, "report_grounding", trErr.ToolName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.GroundingFiles())
		})
	}
}
