package merecat

import "path"

// matchWildcard is the interface the core consumes for the "wildcard-
// match library" spec.md §1 names as an external collaborator
// (CGI-pattern and referer/local-host matching). Patterns are
// '|'-separated alternatives, each matched with shell-glob syntax
// ('*', '?', '[...]') via the standard library's path.Match — no
// third-party glob package appears anywhere in the retrieved corpus,
// so this one ambient concern is stdlib by necessity; see DESIGN.md.
func matchWildcard(pattern, name string) bool {
	if pattern == "" {
		return false
	}

	start := 0
	for i := 0; i <= len(pattern); i++ {
		if i == len(pattern) || pattern[i] == '|' {
			alt := pattern[start:i]
			if alt != "" {
				if ok, err := path.Match(alt, name); err == nil && ok {
					return true
				}
			}
			start = i + 1
		}
	}

	return false
}
