// Package chunk splits source files into the code chunks questions are
// generated from.
package chunk

import "strings"

// DefaultMaxLines is the chunk size used when none is given.
const DefaultMaxLines = 60

// Split breaks src into chunks of at most maxLines lines. Cuts prefer
// blank lines so functions stay whole; a block with no blank line longer
// than maxLines is cut hard. Whitespace-only chunks are dropped.
func Split(src string, maxLines int) []string {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")

	var (
		chunks    []string
		start     int
		lastBlank = -1
	)
	flush := func(end int) {
		if c := strings.Join(lines[start:end], "\n"); strings.TrimSpace(c) != "" {
			chunks = append(chunks, strings.Trim(c, "\n"))
		}
		start = end
		lastBlank = -1
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lastBlank = i
		}
		if i-start+1 < maxLines {
			continue
		}
		if lastBlank > start {
			flush(lastBlank + 1)
		} else {
			flush(i + 1)
		}
	}
	if start < len(lines) {
		flush(len(lines))
	}
	return chunks
}
