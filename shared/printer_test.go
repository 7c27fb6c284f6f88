package shared

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferHook struct {
	strings.Builder
	closed   bool
	closeErr error
}

func (b *bufferHook) Close() error {
	b.closed = true
	return b.closeErr
}

func TestNewPrinter_Validation(t *testing.T) {
	_, err := NewPrinter("  ")
	assert.Error(t, err)

	_, err = NewPrinter("  ", &bufferHook{}, nil)
	assert.Error(t, err)
}

func TestPrinter_IndentsEveryLine(t *testing.T) {
	a, b := &bufferHook{}, &bufferHook{}
	p, err := NewPrinter("  ", a, b)
	require.NoError(t, err)

	require.NoError(t, p.Writeln("[User]: hello\nsecond line", 1))
	require.NoError(t, p.Write("x", 0))
	require.NoError(t, p.Writef(2, "%d files", 3))

	want := "  [User]: hello\n  second line\nx    3 files\n"
	assert.Equal(t, want, a.String())
	assert.Equal(t, want, b.String())
}

func TestPrinter_CloseJoinsErrors(t *testing.T) {
	a := &bufferHook{closeErr: errors.New("a failed")}
	b := &bufferHook{}
	p, err := NewPrinter("", a, b)
	require.NoError(t, err)

	err = p.Close()

	assert.ErrorContains(t, err, "a failed")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
