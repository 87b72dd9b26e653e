package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// splitFrontMatter splits a "---\n<yaml>\n---\n<body>" document into its
// YAML front-matter and the remaining Markdown body.
func splitFrontMatter(data []byte) (frontMatter, body []byte, err error) {
	text := string(data)
	if !strings.HasPrefix(text, frontMatterDelim) {
		return nil, nil, fmt.Errorf("missing opening front-matter delimiter")
	}
	rest := text[len(frontMatterDelim):]
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+frontMatterDelim)
	if idx < 0 {
		return nil, nil, fmt.Errorf("missing closing front-matter delimiter")
	}

	fm := rest[:idx]
	remainder := rest[idx+len("\n"+frontMatterDelim):]
	remainder = strings.TrimPrefix(remainder, "\n")
	return []byte(fm), []byte(remainder), nil
}

// parseTimeField accepts either a time.Time (already parsed by yaml.v3's
// native timestamp support) or a string in RFC3339, returning the zero time
// on anything else (including nil, used for an unresolved resolved_at).
func parseTimeField(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

// sectionHeaders are the four Markdown headings a plan body is divided into
// (spec §6). parseNarrativeSections is intentionally tolerant of missing
// sections and of surrounding whitespace.
var sectionHeaders = []string{"# Objectives", "# Steps", "# Resources", "# Success Criteria"}

func parseNarrativeSections(body []byte) (objectives, steps, resources, success string) {
	sections := make(map[string]string, len(sectionHeaders))
	remaining := string(body)

	for i, header := range sectionHeaders {
		start := strings.Index(remaining, header)
		if start < 0 {
			continue
		}
		contentStart := start + len(header)
		end := len(remaining)
		for _, next := range sectionHeaders[i+1:] {
			if j := strings.Index(remaining[contentStart:], next); j >= 0 {
				candidate := contentStart + j
				if candidate < end {
					end = candidate
				}
				break
			}
		}
		sections[header] = strings.TrimSpace(remaining[contentStart:end])
	}

	return sections["# Objectives"], sections["# Steps"], sections["# Resources"], sections["# Success Criteria"]
}

// MarkdownLines splits body text into trimmed, non-empty lines — used by
// callers that want a quick bullet-list view of a narrative section.
func MarkdownLines(s string) []string {
	var lines []string
	for _, l := range bytes.Split([]byte(s), []byte("\n")) {
		trimmed := strings.TrimSpace(string(l))
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
