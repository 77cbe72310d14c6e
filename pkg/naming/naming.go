// Package naming generates fresh identifiers that do not collide with names
// already used by the code being rewritten.
package naming

import (
	"fmt"
	"sort"
)

// Namer hands out unique names. It is not safe for concurrent use; each
// rewrite owns its own.
type Namer struct {
	used map[string]bool
}

// New returns a Namer that avoids every name in reserved.
func New(reserved ...map[string]bool) *Namer {
	n := &Namer{used: make(map[string]bool)}
	for _, r := range reserved {
		for name := range r {
			n.used[name] = true
		}
	}
	return n
}

// Reserve marks names as taken.
func (n *Namer) Reserve(names ...string) {
	for _, name := range names {
		n.used[name] = true
	}
}

// New returns base if it is free, otherwise base_1, base_2, ... The result is
// reserved.
func (n *Namer) New(base string) string {
	name := base
	for i := 1; n.used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	n.used[name] = true
	return name
}

// Used returns the reserved names, sorted.
func (n *Namer) Used() []string {
	out := make([]string, 0, len(n.used))
	for name := range n.used {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
