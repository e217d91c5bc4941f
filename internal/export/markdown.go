// Package export renders session transcripts as markdown documents.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389-research/cc-log-viewer/pkg/models"
)

// Markdown renders a session's entries as a self-contained markdown
// transcript: a header, then one section per entry with tool inputs and
// results formatted per tool.
func Markdown(entries []models.LogEntry, project, session string) string {
	var md strings.Builder

	fmt.Fprintf(&md, "# Claude Code Session: %s\n\n", session)
	fmt.Fprintf(&md, "**Project:** %s\n", project)

	if len(entries) > 0 && entries[0].Timestamp != nil {
		fmt.Fprintf(&md, "**Date:** %s\n", entries[0].Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	}

	md.WriteString("\n---\n\n")

	// toolResult entries carry no tool name of their own; it comes from the
	// preceding toolUse entry.
	var currentToolUse *models.LogEntry

	for i := range entries {
		entry := &entries[i]
		msg := decodeMessage(entry.Message)

		switch entry.Type {
		case "summary":
			if entry.Summary != "" {
				fmt.Fprintf(&md, "## 📋 Session Summary\n\n%s\n\n", entry.Summary)
			}

		case "user":
			if content, ok := msg["content"].(string); ok {
				fmt.Fprintf(&md, "## 👤 User\n\n%s\n\n", content)
			}

		case "assistant":
			if content, ok := msg["content"].(string); ok {
				fmt.Fprintf(&md, "## 🤖 Assistant\n\n%s\n\n", content)
			}

		case "toolUse":
			currentToolUse = entry
			if name, ok := msg["name"].(string); ok {
				fmt.Fprintf(&md, "### %s %s\n\n", toolIcon(name), name)
				if input, ok := msg["input"].(map[string]interface{}); ok {
					renderToolInput(&md, name, input)
				}
			}

		case "toolResult":
			if currentToolUse != nil && entry.ToolUseResult != nil {
				useMsg := decodeMessage(currentToolUse.Message)
				if name, ok := useMsg["name"].(string); ok {
					renderToolResult(&md, name, decodeMessage(entry.ToolUseResult))
				}
			}
			currentToolUse = nil
		}

		if entry.Timestamp != nil {
			fmt.Fprintf(&md, "*Time: %s*\n\n", entry.Timestamp.UTC().Format("15:04:05"))
		}
	}

	return md.String()
}

func decodeMessage(raw json.RawMessage) map[string]interface{} {
	if raw == nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func toolIcon(name string) string {
	switch name {
	case "Bash":
		return "💻"
	case "Read":
		return "📖"
	case "Edit":
		return "✏️"
	case "MultiEdit":
		return "🔄"
	case "Write", "TodoWrite":
		return "📝"
	case "LS":
		return "📂"
	case "Grep":
		return "🔍"
	case "Glob", "WebFetch":
		return "🌐"
	case "Task":
		return "🎯"
	default:
		return "🔧"
	}
}

func renderToolInput(md *strings.Builder, tool string, input map[string]interface{}) {
	switch tool {
	case "Bash":
		renderBashInput(md, input)
	case "Read":
		renderReadInput(md, input)
	case "Edit":
		renderEditInput(md, input)
	case "MultiEdit":
		renderMultiEditInput(md, input)
	case "Write":
		renderWriteInput(md, input)
	case "TodoWrite":
		renderTodoWriteInput(md, input)
	case "LS":
		if path, ok := input["path"].(string); ok {
			fmt.Fprintf(md, "**📂 %s**\n\n", path)
		}
	case "Grep":
		renderGrepInput(md, input)
	default:
		renderGenericInput(md, input)
	}
}

func renderToolResult(md *strings.Builder, tool string, result map[string]interface{}) {
	content, ok := result["content"].(string)
	if !ok {
		return
	}

	switch tool {
	case "Bash":
		renderFenced(md, "**Output:**", content)
	case "Read":
		renderFenced(md, "**Content:**", content)
	case "Edit":
		if strings.TrimSpace(content) != "" {
			renderFenced(md, "**Result:**", content)
		}
	case "LS":
		renderFenced(md, "**Directory listing:**", content)
	case "Grep":
		renderFenced(md, "**Matches:**", content)
	default:
		renderFenced(md, "**Result:**", content)
	}
}

func renderFenced(md *strings.Builder, label, content string) {
	md.WriteString(label)
	md.WriteString("\n```\n")
	md.WriteString(content)
	md.WriteString("\n```\n\n")
}

func renderBashInput(md *strings.Builder, input map[string]interface{}) {
	command, ok := input["command"].(string)
	if !ok {
		return
	}
	md.WriteString("```bash\n")
	fmt.Fprintf(md, "$ %s\n", command)
	if description, ok := input["description"].(string); ok {
		fmt.Fprintf(md, "# %s\n", description)
	}
	md.WriteString("```\n\n")
}

func renderReadInput(md *strings.Builder, input map[string]interface{}) {
	path, ok := input["file_path"].(string)
	if !ok {
		return
	}
	fmt.Fprintf(md, "**📄 %s**\n", path)

	offset, hasOffset := input["offset"].(float64)
	limit, hasLimit := input["limit"].(float64)
	if hasOffset && hasLimit {
		fmt.Fprintf(md, "*Lines: %d-%d*\n", int64(offset)+1, int64(offset)+int64(limit))
	}
	md.WriteString("\n")
}

func renderEditInput(md *strings.Builder, input map[string]interface{}) {
	path, ok := input["file_path"].(string)
	if !ok {
		return
	}
	fmt.Fprintf(md, "**✏️ %s**\n\n", path)
	renderDiff(md, input)
}

func renderDiff(md *strings.Builder, edit map[string]interface{}) {
	oldString, okOld := edit["old_string"].(string)
	newString, okNew := edit["new_string"].(string)
	if !okOld || !okNew {
		return
	}
	md.WriteString("```diff\n")
	for _, line := range strings.Split(oldString, "\n") {
		fmt.Fprintf(md, "- %s\n", line)
	}
	for _, line := range strings.Split(newString, "\n") {
		fmt.Fprintf(md, "+ %s\n", line)
	}
	md.WriteString("```\n\n")
}

func renderMultiEditInput(md *strings.Builder, input map[string]interface{}) {
	path, okPath := input["file_path"].(string)
	edits, okEdits := input["edits"].([]interface{})
	if !okPath || !okEdits {
		return
	}

	fmt.Fprintf(md, "**🔄 Multiple Edits to %s (%d changes)**\n\n", path, len(edits))

	for i, e := range edits {
		edit, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Fprintf(md, "**Edit %d**", i+1)
		if replaceAll, ok := edit["replace_all"].(bool); ok && replaceAll {
			md.WriteString(" (replace all)")
		}
		md.WriteString("\n")
		renderDiff(md, edit)
	}
}

func renderWriteInput(md *strings.Builder, input map[string]interface{}) {
	path, ok := input["file_path"].(string)
	if !ok {
		return
	}
	fmt.Fprintf(md, "**📝 %s**\n\n", path)
	if content, ok := input["content"].(string); ok {
		renderFenced(md, "**Content:**", content)
	}
}

func renderTodoWriteInput(md *strings.Builder, input map[string]interface{}) {
	todos, ok := input["todos"].([]interface{})
	if !ok {
		return
	}
	fmt.Fprintf(md, "**📝 Todo List (%d items)**\n\n", len(todos))

	for _, t := range todos {
		todo, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		content, _ := todo["content"].(string)
		id, _ := todo["id"].(string)
		status, _ := todo["status"].(string)
		priority, _ := todo["priority"].(string)
		if priority == "" {
			priority = "medium"
		}

		statusIcon, text := "⭕", content
		switch status {
		case "completed":
			statusIcon, text = "✅", "~~"+content+"~~"
		case "in_progress":
			statusIcon, text = "🔄", "**"+content+"**"
		}

		fmt.Fprintf(md, "%s %s\n", statusIcon, text)
		fmt.Fprintf(md, "%s priority • ID: %s\n\n", priority, id)
	}
}

func renderGrepInput(md *strings.Builder, input map[string]interface{}) {
	pattern, ok := input["pattern"].(string)
	if !ok {
		return
	}
	fmt.Fprintf(md, "**Pattern:** `%s`\n", pattern)
	if path, ok := input["path"].(string); ok {
		fmt.Fprintf(md, "**Path:** %s\n", path)
	}
	if glob, ok := input["glob"].(string); ok {
		fmt.Fprintf(md, "**Glob:** %s\n", glob)
	}
	md.WriteString("\n")
}

func renderGenericInput(md *strings.Builder, input map[string]interface{}) {
	pretty, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return
	}
	md.WriteString("**Input:**\n```json\n")
	md.Write(pretty)
	md.WriteString("\n```\n\n")
}
