package merecat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrdecode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello", "hello"},
		{"a%20b", "a b"},
		{"%2e%2e", ".."},
		{"100%25", "100%"},
		{"bad%", "bad%"},
		{"bad%2", "bad%2"},
		{"bad%zz", "bad%zz"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, strdecode(c.in), c.in)
	}
}

func TestStrencodeRoundTrip(t *testing.T) {
	for _, s := range []string{"hello", "a b", "a/b/c", "100%", "../etc"} {
		assert.Equal(t, s, strdecode(strencode(s)))
	}
}

func TestDefang(t *testing.T) {
	assert.Equal(t, "&lt;script&gt;", defang("<script>", 2000))
	assert.Equal(t, "a &amp; b", defang("a & b", 2000))
	assert.Equal(t, "", defang("<", 0))
}

func TestDefangRespectsMaxLen(t *testing.T) {
	out := defang("<<<<<", 3)
	assert.LessOrEqual(t, len(out), 3)
}

func TestDeDotdot(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/a/b", "a/b"},
		{"a//b", "a/b"},
		{"./a/b", "a/b"},
		{"a/./b", "a/b"},
		{"a/b/../c", "a/c"},
		{"../a", "a"},
		{"../../a", "a"},
		{"a/b/..", "a"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, deDotdot(c.in), c.in)
	}
}

func TestRejectsEscape(t *testing.T) {
	assert.True(t, rejectsEscape("/etc/passwd"))
	assert.True(t, rejectsEscape(".."))
	assert.True(t, rejectsEscape("../etc"))
	assert.False(t, rejectsEscape("a/b"))
	assert.False(t, rejectsEscape("."))
}

func TestCollapseSlashes(t *testing.T) {
	assert.Equal(t, "/a/b/", collapseSlashes("//a///b//"))
	assert.Equal(t, "a/b", collapseSlashes("a/b"))
}
