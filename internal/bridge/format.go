// Package bridge implements the session-bridging engine: part formatting,
// the submission pipeline, cancellation, permissions, commands, attachment
// classification, and authorization.
package bridge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/remotevibe/bridge/internal/agentapi"
)

// FormatPart renders one Agent part into a Discord-ready string, or "" to
// suppress emission entirely.
func FormatPart(p agentapi.Part) string {
	switch p.Type {
	case agentapi.PartText:
		return p.Text
	case agentapi.PartReasoning:
		if strings.TrimSpace(p.Text) == "" {
			return ""
		}
		return "◼︎ thinking"
	case agentapi.PartFile:
		name := p.Filename
		if name == "" {
			name = "File"
		}
		return "📄 " + name
	case agentapi.PartStepStart, agentapi.PartStepFinish, agentapi.PartPatch:
		return ""
	case agentapi.PartAgent:
		return "◼︎ agent " + p.AgentID
	case agentapi.PartSnapshot:
		return "◼︎ snapshot " + p.SnapshotID
	case agentapi.PartTool:
		return formatTool(p)
	default:
		return ""
	}
}

func formatTool(p agentapi.Part) string {
	if p.Tool == "todowrite" {
		return formatTodoWrite(p)
	}
	switch p.State {
	case agentapi.ToolStatePending:
		return ""
	case agentapi.ToolStateRunning:
		return fmt.Sprintf("▶ %s %s", p.Tool, toolSummary(p))
	case agentapi.ToolStateError:
		return fmt.Sprintf("⨯ %s _%s_ %s", p.Tool, p.ErrorMsg, toolSummary(p))
	case agentapi.ToolStateOK:
		return fmt.Sprintf("◼︎ %s %s %s", p.Tool, p.Title, toolSummary(p))
	default:
		return ""
	}
}

func formatTodoWrite(p agentapi.Part) string {
	for i, todo := range p.Todos {
		if todo.Status == "in-progress" {
			return fmt.Sprintf("%d. **%s**", i+1, todo.Content)
		}
	}
	return ""
}

// toolSummary renders the per-tool one-line summary appended to formatted
// tool parts.
func toolSummary(p agentapi.Part) string {
	filename, _ := p.Input["filename"].(string)
	switch p.Tool {
	case "edit":
		added, _ := p.Metadata["added"].(float64)
		removed, _ := p.Metadata["removed"].(float64)
		return fmt.Sprintf("*%s* (+%d-%d)", filename, int(added), int(removed))
	case "write":
		lines, _ := p.Metadata["lines"].(float64)
		n := int(lines)
		plural := "s"
		if n == 1 {
			plural = ""
		}
		return fmt.Sprintf("*%s* (%d line%s)", filename, n, plural)
	case "webfetch":
		u, _ := p.Input["url"].(string)
		return "*" + stripScheme(u) + "*"
	case "read", "list", "glob", "grep":
		subject, _ := p.Input["subject"].(string)
		if subject == "" {
			subject = filename
		}
		return "*" + subject + "*"
	case "bash", "todoread", "todowrite":
		return ""
	case "task", "skill":
		desc, _ := p.Input["description"].(string)
		if desc == "" {
			desc, _ = p.Input["name"].(string)
		}
		return "_" + desc + "_"
	default:
		return genericInputSummary(p.Input)
	}
}

func stripScheme(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[i+3:]
	}
	return url
}

func genericInputSummary(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		v := truncate(fmt.Sprintf("%v", input[k]), 300)
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
