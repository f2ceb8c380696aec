package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Disposition is what a rule grants when it matches.
type Disposition string

const (
	Allow Disposition = "allow"
	Deny  Disposition = "deny"
)

// Rule is one permission rule: a tool name with an optional specifier
// matched against the tool's primary argument. Specifiers support *
// wildcards, e.g. Exec(git *) or WriteFile(/tmp/*).
type Rule struct {
	Disposition Disposition
	Tool        string
	Specifier   string
	pattern     *regexp.Regexp
}

// ParseRule parses "ToolName" or "ToolName(specifier)" into a Rule.
func ParseRule(disposition Disposition, raw string) (Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rule{}, fmt.Errorf("empty permission rule")
	}

	tool := raw
	specifier := ""
	if open := strings.Index(raw, "("); open >= 0 {
		if !strings.HasSuffix(raw, ")") {
			return Rule{}, fmt.Errorf("malformed permission rule: %s", raw)
		}
		tool = raw[:open]
		specifier = raw[open+1 : len(raw)-1]
	}
	if tool == "" {
		return Rule{}, fmt.Errorf("permission rule missing tool name: %s", raw)
	}

	rule := Rule{Disposition: disposition, Tool: tool, Specifier: specifier}
	if specifier != "" {
		pattern, err := compileSpecifier(specifier)
		if err != nil {
			return Rule{}, err
		}
		rule.pattern = pattern
	}
	return rule, nil
}

// compileSpecifier turns a wildcard specifier into an anchored regexp.
func compileSpecifier(spec string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i, part := range strings.Split(spec, "*") {
		if i > 0 {
			sb.WriteString(".*")
		}
		sb.WriteString(regexp.QuoteMeta(part))
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid specifier %q: %w", spec, err)
	}
	return re, nil
}

// Matches reports whether the rule applies to a tool call.
func (r Rule) Matches(tool string, args map[string]any) bool {
	if r.Tool != tool {
		return false
	}
	if r.pattern == nil {
		return true
	}
	return r.pattern.MatchString(specifierTarget(tool, args))
}

// specifierTarget picks the argument a specifier matches against:
// the command text for shell tools, the file path otherwise.
func specifierTarget(tool string, args map[string]any) string {
	if v, ok := args["command"].(string); ok {
		return v
	}
	if v, ok := args["path"].(string); ok {
		return v
	}
	return ""
}
