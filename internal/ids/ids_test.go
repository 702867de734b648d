package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDsAreNonZeroAndUnique(t *testing.T) {
	n1, n2 := NewNodeID(), NewNodeID()
	assert.False(t, n1.IsZero())
	assert.NotEqual(t, n1, n2)

	e := NewEdgeID()
	s := NewSessionID()
	tpl := NewTemplateID()
	a := NewAgentID()
	assert.False(t, e.IsZero())
	assert.False(t, s.IsZero())
	assert.NotEmpty(t, tpl.String())
	assert.NotEmpty(t, a.String())
}

func TestZeroValueIsZero(t *testing.T) {
	var n NodeID
	var e EdgeID
	var s SessionID
	assert.True(t, n.IsZero())
	assert.True(t, e.IsZero())
	assert.True(t, s.IsZero())
}

func TestBytesRoundTrip(t *testing.T) {
	n := NewNodeID()
	got, err := NodeIDFromBytes(n.Bytes())
	require.NoError(t, err)
	assert.Equal(t, n, got)

	e := NewEdgeID()
	gotE, err := EdgeIDFromBytes(e.Bytes())
	require.NoError(t, err)
	assert.Equal(t, e, gotE)

	s := NewSessionID()
	gotS, err := SessionIDFromBytes(s.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s, gotS)
}

func TestBytesFromBytesRejectsShortInput(t *testing.T) {
	_, err := NodeIDFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	n := NewNodeID()
	got, err := NodeIDFromString(n.String())
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestMarshalUnmarshalText(t *testing.T) {
	n := NewNodeID()
	text, err := n.MarshalText()
	require.NoError(t, err)

	var got NodeID
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, n, got)

	e := NewEdgeID()
	textE, err := e.MarshalText()
	require.NoError(t, err)
	var gotE EdgeID
	require.NoError(t, gotE.UnmarshalText(textE))
	assert.Equal(t, e, gotE)
}

func TestUnmarshalTextRejectsGarbage(t *testing.T) {
	var n NodeID
	assert.Error(t, n.UnmarshalText([]byte("not-a-uuid")))
}
