package provider

import "strings"

// contextWindows maps model name prefixes to context window sizes in tokens.
// Longest prefix wins.
var contextWindows = map[string]int{
	"claude-3-5":  200000,
	"claude-3":    200000,
	"claude-":     200000,
	"gpt-4o":      128000,
	"gpt-4-turbo": 128000,
	"gpt-4":       8192,
	"gpt-3.5":     16385,
	"gemini-1.5":  1000000,
	"gemini-":     128000,
	"o1":          200000,
	"o3":          200000,
}

// DefaultContextWindow is used for models not in the table.
const DefaultContextWindow = 128000

// ContextWindow returns the context window size for a model name.
func ContextWindow(model string) int {
	best := 0
	window := DefaultContextWindow
	for prefix, w := range contextWindows {
		if strings.HasPrefix(model, prefix) && len(prefix) > best {
			best = len(prefix)
			window = w
		}
	}
	return window
}
