package merecat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestFSMHTTP09TwoWordLF(t *testing.T) {
	raw := "GET /\n"
	fsm := &requestFSM{}
	st := fsm.Scan([]byte(raw))
	assert.Equal(t, grGotRequest, st)
	assert.Equal(t, len(raw), fsm.checkedIdx)
}

func TestRequestFSMBlankLineLFLF(t *testing.T) {
	raw := "GET / HTTP/1.0\nHost: x\n\n"
	fsm := &requestFSM{}
	st := fsm.Scan([]byte(raw))
	assert.Equal(t, grGotRequest, st)
	assert.Equal(t, len(raw), fsm.checkedIdx)
}

func TestRequestFSMBlankLineCRCR(t *testing.T) {
	raw := "GET / HTTP/1.0\r\r"
	fsm := &requestFSM{}
	st := fsm.Scan([]byte(raw))
	assert.Equal(t, grGotRequest, st)
	assert.Equal(t, len(raw), fsm.checkedIdx)
}

func TestRequestFSMBlankLineCRLFCRLF(t *testing.T) {
	raw := "GET / HTTP/1.0\r\nHost: x\r\n\r\n"
	fsm := &requestFSM{}
	st := fsm.Scan([]byte(raw))
	assert.Equal(t, grGotRequest, st)
	assert.Equal(t, len(raw), fsm.checkedIdx)
}

func TestRequestFSMBadRequestLeadingNewline(t *testing.T) {
	fsm := &requestFSM{}
	st := fsm.Scan([]byte("\n"))
	assert.Equal(t, grBadRequest, st)
	assert.Equal(t, 1, fsm.checkedIdx)
}

func TestRequestFSMBadRequestTrailingJunkAfterVersion(t *testing.T) {
	fsm := &requestFSM{}
	st := fsm.Scan([]byte("GET / HTTP/1.1 junk\r\n\r\n"))
	assert.Equal(t, grBadRequest, st)
}

func TestRequestFSMIncompleteReturnsNoRequest(t *testing.T) {
	fsm := &requestFSM{}
	st := fsm.Scan([]byte("GET / HTTP/1.0\nHost: x"))
	assert.Equal(t, grNoRequest, st)
}

// TestRequestFSMResumesAcrossCalls is the core restartability contract:
// repeated Scan calls against a growing buffer, starting from the same
// base, must reach the same verdict as one call against the whole
// buffer, and must never re-scan bytes already classified.
func TestRequestFSMResumesAcrossCalls(t *testing.T) {
	full := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"

	fsm := &requestFSM{}
	var st requestStatus
	for size := 1; size <= len(full); size++ {
		st = fsm.Scan([]byte(full[:size]))
		if st != grNoRequest {
			break
		}
	}

	assert.Equal(t, grGotRequest, st)
	assert.Equal(t, len(full), fsm.checkedIdx)
}

func TestRequestFSMResetAllowsRescan(t *testing.T) {
	fsm := &requestFSM{}
	fsm.Scan([]byte("GET / HTTP/1.0\n\n"))
	fsm.Reset()
	assert.Equal(t, fsmFirstWord, fsm.state)
	assert.Equal(t, 0, fsm.checkedIdx)

	st := fsm.Scan([]byte("GET / HTTP/1.0\n\n"))
	assert.Equal(t, grGotRequest, st)
}
