package merecat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCIDRBareAddress(t *testing.T) {
	cidr, err := toCIDR("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1/32", cidr)
}

func TestToCIDRMaskLen(t *testing.T) {
	cidr, err := toCIDR("10.0.0.0/8")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8", cidr)
}

func TestToCIDRDottedNetmask(t *testing.T) {
	cidr, err := toCIDR("192.168.1.0/255.255.255.0")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.0/24", cidr)
}

func TestToCIDRInvalidAddress(t *testing.T) {
	_, err := toCIDR("not-an-ip")
	assert.Error(t, err)
}

func TestToCIDRInvalidMaskLen(t *testing.T) {
	_, err := toCIDR("10.0.0.0/99")
	assert.Error(t, err)
}

func TestParseAccessRulesShorthandDirectives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, htaccessFilename)
	require.NoError(t, os.WriteFile(path, []byte("allow 10.0.0.0/8\nd 192.168.0.0/16\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rules, err := parseAccessRules(f)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "allow", rules[0].Key)
	assert.Equal(t, "10.0.0.0/8", rules[0].Value[0])
	assert.Equal(t, "deny", rules[1].Key)
	assert.Equal(t, "192.168.0.0/16", rules[1].Value[0])
}

func TestParseAccessRulesMalformedLineErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, htaccessFilename)
	require.NoError(t, os.WriteFile(path, []byte("allow\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = parseAccessRules(f)
	assert.Error(t, err)
}

func accessTestConn(documentRoot, remoteAddr string) (*Connection, func() string) {
	conn, out := fakeRWConn(documentRoot)
	conn.remoteAddr = remoteAddr
	return conn, out.String
}

func TestCheckAccessFileAllowsMatchingNetwork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, htaccessFilename)
	require.NoError(t, os.WriteFile(path, []byte("allow 10.0.0.0/8\n"), 0o644))

	conn, out := accessTestConn(dir, "10.1.2.3")
	err := checkAccessFile(conn, path)
	assert.NoError(t, err)
	assert.Empty(t, out())
}

func TestCheckAccessFileDeniesNonMatchingNetwork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, htaccessFilename)
	require.NoError(t, os.WriteFile(path, []byte("allow 10.0.0.0/8\n"), 0o644))

	conn, out := accessTestConn(dir, "192.168.1.1")
	err := checkAccessFile(conn, path)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(out(), "403"))
}

func TestCheckAccessFileLaterAllowOverridesEarlierDeny(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, htaccessFilename)
	require.NoError(t, os.WriteFile(path, []byte("deny 10.0.0.0/8\nallow 10.1.0.0/16\n"), 0o644))

	conn, out := accessTestConn(dir, "10.1.2.3")
	err := checkAccessFile(conn, path)
	assert.NoError(t, err)
	assert.Empty(t, out())
}
