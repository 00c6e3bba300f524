package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetIdentityNotName(t *testing.T) {
	a := NewNet("shared", nil)
	b := NewNet("shared", nil)
	assert.False(t, a.Equal(b), "two distinct nets sharing a name must not compare equal")
	assert.True(t, a.Equal(a), "a net must equal itself")
}

func TestNetEqualNilSafe(t *testing.T) {
	var a, b *Net
	assert.True(t, a.Equal(b), "two nil nets should compare equal")
	n := NewNet("x", nil)
	assert.False(t, n.Equal(nil), "a non-nil net must never equal nil")
	assert.False(t, (*Net)(nil).Equal(n), "nil must never equal a non-nil net")
}

func TestNetLessTotalOrder(t *testing.T) {
	ResetNetIDCounter()
	a := NewNet("a", nil)
	b := NewNet("b", nil)
	assert.True(t, a.Less(b), "expected a < b by allocation order")
	assert.False(t, b.Less(a), "order must be antisymmetric")
}
