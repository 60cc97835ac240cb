package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, Options{NoColor: true})
	log.Debug("hidden")
	log.Warn("unresolved type", "name", "geo::Shape", "line", 12)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "unresolved type")
	assert.Contains(t, out, "name=geo::Shape")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_Verbose(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	New(&buf, Options{Verbose: true, NoColor: true}).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	Discard().Error("nothing")
}
