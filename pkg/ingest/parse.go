package ingest

import (
	"bufio"
	"bytes"
	"strings"
)

// parseKeyValueLines reads "key: value" lines from raw inbox content,
// ignoring anything that doesn't match the pattern. This is deliberately
// loose: Inbox accepts arbitrary text, and only lines that look like
// metadata are promoted into the Action's fields/context.
func parseKeyValueLines(raw []byte) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		val := strings.TrimSpace(line[idx+1:])
		if key == "" || val == "" {
			continue
		}
		fields[key] = val
	}
	return fields
}
