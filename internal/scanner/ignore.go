package scanner

import (
	"bufio"
	"io"
	"path"
	"strings"
)

// Rule is one gitignore-style line of an ignore file.
type Rule struct {
	base     string // directory of the ignore file, relative to the scan root
	negate   bool
	dirOnly  bool
	anchored bool
	parts    []string
}

// ParseRule parses a pattern line. Leading "!" negates, a trailing "/" only
// matches directories, and a pattern containing "/" is anchored to the
// directory of its ignore file.
func ParseRule(base, line string) Rule {
	r := Rule{base: strings.Trim(base, "/")}
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	r.parts = strings.Split(line, "/")
	return r
}

// Match reports whether rel, a slash-separated path relative to the scan
// root, is matched by the rule. A match on a parent directory matches
// everything below it.
func (r Rule) Match(rel string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(rel, r.base+"/") {
			return false
		}
		rel = rel[len(r.base)+1:]
	}
	segs := strings.Split(rel, "/")
	starts := len(segs)
	if r.anchored {
		starts = 1
	}
	for start := 0; start < starts; start++ {
		for end := start + 1; end <= len(segs); end++ {
			if !matchParts(r.parts, segs[start:end]) {
				continue
			}
			if end < len(segs) || isDir || !r.dirOnly {
				return true
			}
		}
	}
	return false
}

// matchParts matches pattern segments against path segments, "**" spanning
// any number of them.
func matchParts(parts, segs []string) bool {
	if len(parts) == 0 {
		return len(segs) == 0
	}
	if parts[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchParts(parts[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(parts[0], segs[0]); err != nil || !ok {
		return false
	}
	return matchParts(parts[1:], segs[1:])
}

// Ignore is an ordered rule set; the last matching rule decides.
type Ignore struct {
	rules []Rule
}

// Add appends the rules read from an ignore file located in directory base.
// Blank lines and "#" comments are skipped.
func (ig *Ignore) Add(base string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ig.rules = append(ig.rules, ParseRule(base, line))
	}
	return sc.Err()
}

// Ignored reports whether rel should be skipped.
func (ig *Ignore) Ignored(rel string, isDir bool) bool {
	ignored := false
	for _, r := range ig.rules {
		if r.Match(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

// Len returns the number of rules.
func (ig *Ignore) Len() int { return len(ig.rules) }
