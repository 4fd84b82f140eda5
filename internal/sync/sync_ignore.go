package sync

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreFile is looked up at the root of the synced directory
const DefaultIgnoreFile = ".dossierignore"

// IgnoreList filters local paths out of a sync.
// A nil *IgnoreList ignores nothing.
type IgnoreList struct {
	rules  []string
	ignore *gitignore.GitIgnore
}

// NewIgnoreList compiles gitignore-style rules. Blank lines and comments are dropped.
func NewIgnoreList(lines ...string) *IgnoreList {
	rules := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return &IgnoreList{
		rules:  rules,
		ignore: gitignore.CompileIgnoreLines(rules...),
	}
}

// LoadIgnoreFile reads rules from path. A missing file yields an empty list.
func LoadIgnoreFile(path string) (*IgnoreList, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewIgnoreList(), nil
	} else if err != nil {
		return nil, fmt.Errorf("open ignore file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}

	list := NewIgnoreList(lines...)
	slog.Info("loaded ignore file", "path", path, "rules", list.Len())
	return list, nil
}

// ShouldIgnore reports whether a slash-separated path relative to the sync root is excluded.
// Directories are matched with a trailing slash.
func (l *IgnoreList) ShouldIgnore(rel string) bool {
	if l == nil || len(l.rules) == 0 {
		return false
	}
	return l.ignore.MatchesPath(rel)
}

func (l *IgnoreList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.rules)
}
