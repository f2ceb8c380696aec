package agent

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/tools"
)

// PromptOptions configures the system prompt for one agent.
type PromptOptions struct {
	Name     string
	Role     string
	WorkDir  string
	Registry *tools.Registry
	Extra    string
}

// BuildSystemPrompt assembles the system prompt from identity, runtime
// info, and the available tool set.
func BuildSystemPrompt(opts PromptOptions) string {
	name := opts.Name
	if name == "" {
		name = "CrewClaw"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", name))
	sb.WriteString("You are an autonomous coding assistant. Work step by step: inspect before you change, verify after you act, and report exactly what you did.\n")
	if opts.Role != "" {
		sb.WriteString(fmt.Sprintf("\n## Role\n%s\n", opts.Role))
	}

	sb.WriteString(fmt.Sprintf("\n## Current Time\n%s\n", time.Now().Format("2006-01-02 15:04 (Monday)")))
	sb.WriteString(fmt.Sprintf("\n## Runtime\n%s %s, Go %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version()))
	if opts.WorkDir != "" {
		sb.WriteString(fmt.Sprintf("\n## Workspace\nYour working directory is: %s\nFile writes are restricted to this directory.\n", opts.WorkDir))
	}

	if opts.Registry != nil {
		if list := opts.Registry.List(); len(list) > 0 {
			sb.WriteString("\n## Tools\nYou have the following tools available:\n")
			for _, tool := range list {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name(), tool.Description()))
			}
		}
	}

	if opts.Extra != "" {
		sb.WriteString("\n" + strings.TrimSpace(opts.Extra) + "\n")
	}

	return strings.TrimSpace(sb.String())
}
