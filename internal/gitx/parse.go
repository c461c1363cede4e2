package gitx

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/skaphos/upkeep/internal/model"
)

// ParseRevListCount parses the output of:
//
//	git rev-list --left-right --count <branch>...<upstream>
//
// Returns (ahead, behind).
func ParseRevListCount(output string) (int, int) {
	output = strings.TrimSpace(output)
	if output == "" {
		return 0, 0
	}
	parts := strings.Fields(output)
	if len(parts) != 2 {
		return 0, 0
	}
	ahead, _ := strconv.Atoi(parts[0])
	behind, _ := strconv.Atoi(parts[1])
	return ahead, behind
}

// ParseLogLines parses tab-delimited log lines in the shape
// hash<TAB>subject<TAB>author<TAB>date. Lines with fewer than four fields
// are dropped silently. Subjects are newline-stripped and truncated.
func ParseLogLines(output string) []model.Commit {
	if strings.TrimSpace(output) == "" {
		return nil
	}
	var commits []model.Commit
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) < 4 {
			continue
		}
		msg := truncateMessage(strings.ReplaceAll(parts[1], "\n", " "))
		commits = append(commits, model.Commit{
			Hash:    strings.TrimSpace(parts[0]),
			Message: strings.TrimSpace(msg),
			Author:  strings.TrimSpace(parts[2]),
			Date:    strings.TrimSpace(parts[3]),
		})
	}
	return commits
}

// truncateMessage bounds a commit subject without splitting a multi-byte
// rune at the cut point.
func truncateMessage(msg string) string {
	if len(msg) <= model.MaxCommitMessageLen {
		return msg
	}
	cut := model.MaxCommitMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// ParseStatusPaths extracts the touched paths from `git status
// --porcelain=v1` output. Rename entries yield the destination path.
func ParseStatusPaths(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		p := strings.TrimSpace(line[3:])
		if idx := strings.Index(p, " -> "); idx >= 0 {
			p = p[idx+4:]
		}
		p = strings.Trim(p, `"`)
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// ParseTagList parses `git tag -l --format` output in the shape
// name<TAB>pointed-commit-unix<TAB>tag-unix. The second field is empty for
// lightweight tags, in which case the third is used.
func ParseTagList(output string) []model.ReleaseTag {
	if strings.TrimSpace(output) == "" {
		return nil
	}
	var tags []model.ReleaseTag
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			ts, err = strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
			if err != nil {
				continue
			}
		}
		tags = append(tags, model.ReleaseTag{Name: name, CommitTime: ts})
	}
	return tags
}

// ParseShortStat parses `git diff --shortstat` output, for example:
//
//	3 files changed, 12 insertions(+), 4 deletions(-)
//
// Returns nil when the output does not look like a shortstat line.
func ParseShortStat(output string) *model.DiffStats {
	output = strings.TrimSpace(output)
	if output == "" || !strings.Contains(output, "changed") {
		return nil
	}
	stats := &model.DiffStats{}
	for _, part := range strings.Split(output, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(fields[1], "file"):
			stats.FilesChanged = n
		case strings.HasPrefix(fields[1], "insertion"):
			stats.Insertions = n
		case strings.HasPrefix(fields[1], "deletion"):
			stats.Deletions = n
		}
	}
	return stats
}

// ParseNumstat sums `git diff --numstat` lines into totals. Binary file
// entries ("-") count as a changed file with no line totals.
func ParseNumstat(output string) *model.DiffStats {
	if strings.TrimSpace(output) == "" {
		return nil
	}
	stats := &model.DiffStats{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 3 {
			continue
		}
		stats.FilesChanged++
		if n, err := strconv.Atoi(strings.TrimSpace(fields[0])); err == nil {
			stats.Insertions += n
		}
		if n, err := strconv.Atoi(strings.TrimSpace(fields[1])); err == nil {
			stats.Deletions += n
		}
	}
	if stats.FilesChanged == 0 {
		return nil
	}
	return stats
}

// ParseUnixTimestamp parses a decimal unix timestamp.
func ParseUnixTimestamp(output string) (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(output), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q: %w", strings.TrimSpace(output), err)
	}
	return ts, nil
}

func parseCount(output string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
