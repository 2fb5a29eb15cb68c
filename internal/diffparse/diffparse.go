// Package diffparse turns unified diff text into structured hunks.
//
// The parser is pure and total: it never returns an error for malformed
// input, it simply produces fewer hunks. Line numbers in the source diff
// are one-indexed, matching unified diff convention.
package diffparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Hunk is a single contiguous change block within one file.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int

	// Header is the verbatim "@@ ... @@" line, including any trailing
	// section heading text some diff generators append.
	Header string

	// Body holds every "+", "-", or " " prefixed line that belongs to
	// this hunk, newline-joined.
	Body string
}

// FileDiff is the set of hunks touching one file.
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk

	IsNewFile bool
	IsDeleted bool
}

var (
	fileHeaderRe = regexp.MustCompile(`^diff --git a/(.*) b/(.*)$`)
	hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)
)

// Parse parses unified diff text into an ordered sequence of FileDiffs.
// It never fails; a binary marker, empty input, or any unrecognized line
// simply contributes nothing to the result.
func Parse(diffText string) []FileDiff {
	var (
		files   []FileDiff
		current *FileDiff
		hunk    *Hunk
	)

	saveHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, *hunk)
			hunk = nil
		}
	}

	saveFile := func() {
		saveHunk()
		if current != nil {
			files = append(files, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(diffText, "\n") {
		if m := fileHeaderRe.FindStringSubmatch(line); m != nil {
			saveFile()
			current = &FileDiff{OldPath: m[1], NewPath: m[2]}
			continue
		}

		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "new file mode"):
			current.IsNewFile = true
			continue
		case strings.HasPrefix(line, "deleted file mode"):
			current.IsDeleted = true
			continue
		}

		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			saveHunk()
			hunk = &Hunk{
				OldStart: atoiOr(m[1], 0),
				OldLines: atoiOrDefault(m[2], 1),
				NewStart: atoiOr(m[3], 0),
				NewLines: atoiOrDefault(m[4], 1),
				Header:   line,
			}
			continue
		}

		if hunk == nil {
			continue
		}

		if len(line) == 0 {
			continue
		}

		switch line[0] {
		case '+', '-', ' ':
			hunk.Body = appendBodyLine(hunk.Body, line)
		}
	}

	saveFile()

	return files
}

func appendBodyLine(body, line string) string {
	if body == "" {
		return line
	}
	return body + "\n" + line
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func atoiOrDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	return atoiOr(s, fallback)
}

// FormatHunks renders a sequence of FileDiffs as Markdown with fenced
// diff blocks, suitable as the body of a Stage 1 review prompt.
func FormatHunks(files []FileDiff) string {
	var b strings.Builder

	for _, f := range files {
		status := ""
		switch {
		case f.IsNewFile:
			status = " (new file)"
		case f.IsDeleted:
			status = " (deleted)"
		}
		fmt.Fprintf(&b, "\n### File: %s%s\n", f.NewPath, status)

		for i, h := range f.Hunks {
			fmt.Fprintf(&b, "\n#### Hunk %d (lines %d-%d):\n", i+1,
				h.NewStart, h.NewStart+h.NewLines-1)
			b.WriteString("\n```diff\n")
			b.WriteString(h.Body)
			b.WriteString("\n```\n")
		}
	}

	return b.String()
}

// ChangedFunction is a best-effort signal about which function or method
// a "+" line belongs to. It must never be trusted for correctness.
type ChangedFunction struct {
	File     string
	Function string
	Line     int
}

var functionPatterns = []*regexp.Regexp{
	// Python.
	regexp.MustCompile(`^\+\s*def\s+(\w+)\s*\(`),
	regexp.MustCompile(`^\+\s*async\s+def\s+(\w+)\s*\(`),
	// JavaScript / TypeScript.
	regexp.MustCompile(`^\+\s*function\s+(\w+)\s*\(`),
	regexp.MustCompile(`^\+\s*(?:export\s+)?(?:async\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(`),
	regexp.MustCompile(`^\+\s*(\w+)\s*\([^)]*\)\s*(?::\s*\w+\s*)?\{`),
}

// ChangedFunctions scans every "+" line of every hunk for a best-effort
// function or method definition, using a small set of regular expressions
// per supported source language (Python, JavaScript/TypeScript).
func ChangedFunctions(files []FileDiff) []ChangedFunction {
	var out []ChangedFunction

	for _, f := range files {
		for _, h := range f.Hunks {
			lineNo := h.NewStart
			for _, line := range strings.Split(h.Body, "\n") {
				if strings.HasPrefix(line, "+") {
					for _, re := range functionPatterns {
						if m := re.FindStringSubmatch(line); m != nil {
							out = append(out, ChangedFunction{
								File:     f.NewPath,
								Function: m[1],
								Line:     lineNo,
							})
							break
						}
					}
				}
				if !strings.HasPrefix(line, "-") {
					lineNo++
				}
			}
		}
	}

	return out
}
