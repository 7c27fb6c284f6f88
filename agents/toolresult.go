package agents

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ToolResult is the payload of extension.middle_tier_tool_response.
type ToolResult struct {
	Sources []ToolResultSource `json:"sources"`
}

type ToolResultSource struct {
	ChunkID string `json:"chunk_id"`
	Title   string `json:"title"`
	Chunk   string `json:"chunk"`
}

// ToolResultError reports a tool_result that could not be decoded.
type ToolResultError struct {
	ToolName string
	Raw      string
	Err      error
}

func (e *ToolResultError) Error() string {
	if e.ToolName != "" {
		return fmt.Sprintf("parsing %s tool result: %v", e.ToolName, e.Err)
	}
	return fmt.Sprintf("parsing tool result: %v", e.Err)
}

func (e *ToolResultError) Unwrap() error { return e.Err }

var errNoSources = errors.New("missing sources")

// toolResultWire tells an absent or null sources key apart from an empty list.
type toolResultWire struct {
	Sources *[]ToolResultSource `json:"sources"`
}

// ParseToolResult decodes raw. Any failure is a *ToolResultError, including
// a payload without a sources list.
func ParseToolResult(toolName, raw string) (ToolResult, error) {
	if raw == "" {
		return ToolResult{}, &ToolResultError{ToolName: toolName, Raw: raw, Err: errors.New("empty payload")}
	}
	var wire toolResultWire
	if err := sonic.UnmarshalString(raw, &wire); err != nil {
		return ToolResult{}, &ToolResultError{ToolName: toolName, Raw: raw, Err: err}
	}
	if wire.Sources == nil {
		return ToolResult{}, &ToolResultError{ToolName: toolName, Raw: raw, Err: errNoSources}
	}
	return ToolResult{Sources: *wire.Sources}, nil
}

// GroundingFiles maps each source to a grounding file, keeping order.
func (r ToolResult) GroundingFiles() []GroundingFile {
	files := make([]GroundingFile, 0, len(r.Sources))
	for _, s := range r.Sources {
		files = append(files, GroundingFile{ID: s.ChunkID, Name: s.Title, Content: s.Chunk})
	}
	return files
}
