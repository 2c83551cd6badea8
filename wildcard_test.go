package merecat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchWildcard(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"cgi-bin/*", "cgi-bin/script.cgi", true},
		{"cgi-bin/*", "other/script.cgi", false},
		{"*.cgi", "report.cgi", true},
		{"*.cgi|cgi-bin/*", "cgi-bin/run", true},
		{"*.cgi|cgi-bin/*", "report.cgi", true},
		{"*.cgi|cgi-bin/*", "index.html", false},
		{"", "anything", false},
		{"*.htm?", "index.html", true},
		{"*.htm?", "index.htm", false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, matchWildcard(c.pattern, c.name), "%s vs %s", c.pattern, c.name)
	}
}

func TestMatchWildcardEmptyAlternativesSkipped(t *testing.T) {
	assert.False(t, matchWildcard("||", "x"))
	assert.True(t, matchWildcard("|*.cgi", "a.cgi"))
}
