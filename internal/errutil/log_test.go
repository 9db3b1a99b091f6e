package errutil

import (
	"bytes"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

func bufLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := log.NewWithOptions(&buf, log.Options{Formatter: log.JSONFormatter})
	return l, &buf
}

func TestLogErrorOops(t *testing.T) {
	l, buf := bufLogger()
	err := oops.In("tuning").Code("E_TUNING_READ").With("path", "x.yaml").Errorf("boom")
	LogError(l, "load failed", err)

	out := buf.String()
	assert.Contains(t, out, "load failed")
	assert.Contains(t, out, "E_TUNING_READ")
	assert.Contains(t, out, "x.yaml")
	assert.Contains(t, out, "tuning")
}

func TestLogErrorPlain(t *testing.T) {
	l, buf := bufLogger()
	LogError(l, "plain", errors.New("nope"))
	out := buf.String()
	assert.Contains(t, out, "plain")
	assert.Contains(t, out, "nope")
	assert.NotContains(t, out, "code")
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(errors.New("x")))
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "E_X", Code(oops.Code("E_X").Errorf("x")))
	wrapped := oops.In("outer").Wrapf(oops.Code("E_INNER").Errorf("x"), "wrap")
	assert.Equal(t, "E_INNER", Code(wrapped))
}

func TestAssertHelpers(t *testing.T) {
	err := oops.Code("E_Y").With("k", 3).Errorf("y")
	AssertErrorCode(t, err, "E_Y")
	AssertErrorContext(t, err, "k", 3)
}
