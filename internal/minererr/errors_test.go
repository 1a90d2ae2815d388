package minererr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesKindAndCause(t *testing.T) {
	cause := errors.New("underlying failure")
	err := New(KindUsb, "bulk write").WithCause(cause).WithDetail("endpoint=0x01")

	msg := err.Error()
	assert.Contains(t, msg, "usb")
	assert.Contains(t, msg, "bulk write")
	assert.Contains(t, msg, "endpoint=0x01")
	assert.Contains(t, msg, "underlying failure")
}

func TestUnwrapExposesCauseChain(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindBackend, "device failure", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestKindOfFindsWrappedKind(t *testing.T) {
	err := New(KindTimer, "clock regression")
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindTimer, kind)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestPanicRaisesViolation(t *testing.T) {
	defer func() {
		r := recover()
		v, ok := r.(Violation)
		assert.True(t, ok)
		assert.Contains(t, v.String(), "contract violation")
		assert.Contains(t, v.String(), "too many solutions")
	}()
	Panic("too many solutions for %s", "assignment")
}
