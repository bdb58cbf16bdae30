package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsNumber(t *testing.T) {
	f, errv := AsNumber(Number(2.5))
	require.Nil(t, errv)
	assert.Equal(t, 2.5, f)

	f, errv = AsNumber(nil)
	require.Nil(t, errv)
	assert.Equal(t, 0.0, f)

	f, errv = AsNumber(Bool(true))
	require.Nil(t, errv)
	assert.Equal(t, 1.0, f)

	f, errv = AsNumber(Text(" 42 "))
	require.Nil(t, errv)
	assert.Equal(t, 42.0, f)

	_, errv = AsNumber(Text("abc"))
	require.NotNil(t, errv)
	tag, ok := IsError(errv)
	require.True(t, ok)
	assert.Equal(t, TagValue, tag)

	// Errors pass through with their tag intact.
	_, errv = AsNumber(NewError(TagDiv0))
	tag, ok = IsError(errv)
	require.True(t, ok)
	assert.Equal(t, TagDiv0, tag)
}

func TestAsText(t *testing.T) {
	s, errv := AsText(Number(15))
	require.Nil(t, errv)
	assert.Equal(t, "15", s)

	s, errv = AsText(nil)
	require.Nil(t, errv)
	assert.Equal(t, "", s)

	s, errv = AsText(Bool(false))
	require.Nil(t, errv)
	assert.Equal(t, "FALSE", s)

	_, errv = AsText(NewError(TagRef))
	tag, ok := IsError(errv)
	require.True(t, ok)
	assert.Equal(t, TagRef, tag)
}

func TestAsBool(t *testing.T) {
	b, errv := AsBool(Number(3))
	require.Nil(t, errv)
	assert.True(t, b)

	b, errv = AsBool(Number(0))
	require.Nil(t, errv)
	assert.False(t, b)

	b, errv = AsBool(nil)
	require.Nil(t, errv)
	assert.False(t, b)

	b, errv = AsBool(Text("true"))
	require.Nil(t, errv)
	assert.True(t, b)

	_, errv = AsBool(Text("yes"))
	require.NotNil(t, errv)
	tag, _ := IsError(errv)
	assert.Equal(t, TagValue, tag)

	_, errv = AsBool(NewError(TagCircular))
	tag, _ = IsError(errv)
	assert.Equal(t, TagCircular, tag)
}
