package resolvepkg

import "strings"

// trie supports "is there any resolve target at or beneath this prefix"
// queries in roughly O(segments-in-prefix), keyed on "/"-separated path
// segments of a canonical resource key.
type trie struct {
	children map[string]*trie
	terminal bool
}

func newTrie() *trie {
	return &trie{children: make(map[string]*trie)}
}

// segments splits a canonical key on "/", dropping the empty segments the
// "://" separator and a trailing slash produce, so insert and hasAtOrBeneath
// walk identical node paths.
func segments(key string) []string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// insert marks key (and, implicitly, every ancestor of it) as interesting.
func (t *trie) insert(key string) {
	node := t
	for _, seg := range segments(key) {
		child, ok := node.children[seg]
		if !ok {
			child = newTrie()
			node.children[seg] = child
		}
		node = child
	}
	node.terminal = true
}

// hasAtOrBeneath reports whether any inserted key is equal to prefix or
// has prefix as a proper ancestor.
func (t *trie) hasAtOrBeneath(prefix string) bool {
	node := t
	for _, seg := range segments(prefix) {
		child, ok := node.children[seg]
		if !ok {
			return false
		}
		node = child
	}
	return node.terminal || len(node.children) > 0
}
