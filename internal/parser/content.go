package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// blockContent is the result of walking an Anthropic-style message
// content value (string, or array of typed blocks).
type blockContent struct {
	text       string
	toolName   string
	toolInput  string
	toolOutput string
	hasText    bool
	hasToolUse bool
	hasResult  bool
}

// walkBlocks extracts text, tool_use, and tool_result data from a
// message content value. Claude Code and Amp share this block shape.
func walkBlocks(content gjson.Result) blockContent {
	var bc blockContent

	if content.Type == gjson.String {
		bc.text = content.Str
		bc.hasText = strings.TrimSpace(content.Str) != ""
		return bc
	}

	var parts []string
	content.ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").Str {
		case "text":
			if t := part.Get("text").Str; strings.TrimSpace(t) != "" {
				parts = append(parts, t)
				bc.hasText = true
			}
		case "tool_use", "toolu":
			bc.hasToolUse = true
			if bc.toolName == "" {
				bc.toolName = part.Get("name").Str
				bc.toolInput = part.Get("input").Raw
			}
		case "tool_result":
			bc.hasResult = true
			if bc.toolOutput == "" {
				bc.toolOutput = resultText(part.Get("content"))
			}
		}
		return true
	})
	bc.text = strings.Join(parts, "\n")
	return bc
}

// resultText flattens a tool_result content value, which may be a
// plain string or an array of text blocks.
func resultText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.Str
	}
	var parts []string
	content.ForEach(func(_, part gjson.Result) bool {
		if part.Get("type").Str == "text" {
			if t := part.Get("text").Str; t != "" {
				parts = append(parts, t)
			}
		}
		return true
	})
	return strings.Join(parts, "\n")
}
