package particles

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_Levels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger("particles", false, &out, &errOut)

	l.Debugf("hidden %d", 1)
	assert.Empty(t, out.String())

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 2)
	l.Infof("points=%d", 100)
	assert.Contains(t, out.String(), "[particles] DEBUG: shown 2")
	assert.Contains(t, out.String(), "[particles] INFO: points=100")

	l.Warnf("unsupported %q", "a.stl")
	l.Errorf("boom")
	assert.Contains(t, errOut.String(), `WARN: unsupported "a.stl"`)
	assert.Contains(t, errOut.String(), "ERROR: boom")
}

func TestLogger_NoPrefix(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger("", false, &out, &out)
	l.Infof("x")
	assert.Contains(t, out.String(), "INFO: x")
	assert.NotContains(t, out.String(), "[")
}

func TestOrNop(t *testing.T) {
	l := orNop(nil)
	assert.NotNil(t, l)
	assert.False(t, l.DebugEnabled())
	l.Infof("dropped")
}
