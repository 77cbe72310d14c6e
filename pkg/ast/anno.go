package ast

// Key names an annotation. Keys are owned by the pass that writes them.
type Key string

// SetAnno attaches v to n under key.
func SetAnno(n Node, key Key, v any) {
	m := n.meta()
	if m.anno == nil {
		m.anno = make(map[Key]any)
	}
	m.anno[key] = v
}

// GetAnno returns the annotation stored under key.
func GetAnno(n Node, key Key) (any, bool) {
	m := n.meta()
	if m.anno == nil {
		return nil, false
	}
	v, ok := m.anno[key]
	return v, ok
}

// HasAnno reports whether n has an annotation under key.
func HasAnno(n Node, key Key) bool {
	_, ok := GetAnno(n, key)
	return ok
}

// DelAnno removes the annotation stored under key.
func DelAnno(n Node, key Key) {
	if m := n.meta(); m.anno != nil {
		delete(m.anno, key)
	}
}

// CopyAnno copies a single annotation between nodes, if present.
func CopyAnno(from, to Node, key Key) {
	if v, ok := GetAnno(from, key); ok {
		SetAnno(to, key, v)
	}
}

// ClearAnnos drops every annotation in the tree rooted at n.
func ClearAnnos(n Node) {
	Inspect(n, func(c Node) bool {
		c.meta().anno = nil
		return true
	})
}
