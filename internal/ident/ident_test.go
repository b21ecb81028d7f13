package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesCaseAndWhitespace(t *testing.T) {
	id := New("  Drive-ABC  ")
	assert.Equal(t, "drive-abc", id.String())
}

func TestNew_EmptyIsZero(t *testing.T) {
	id := New("")
	assert.True(t, id.IsZero())
}

func TestEqual(t *testing.T) {
	assert.True(t, New("Drive-1").Equal(New("drive-1")))
	assert.False(t, New("drive-1").Equal(New("drive-2")))
}

func TestTextMarshalUnmarshalRoundTrip(t *testing.T) {
	id := New("Drive-1")

	text, err := id.MarshalText()
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.True(t, id.Equal(decoded))
}

func TestScanValueRoundTrip(t *testing.T) {
	id := New("Drive-1")

	val, err := id.Value()
	require.NoError(t, err)

	var scanned ID
	require.NoError(t, scanned.Scan(val))
	assert.True(t, id.Equal(scanned))
}

func TestScan_NilProducesZero(t *testing.T) {
	var scanned ID
	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())
}

func TestValue_ZeroIsNull(t *testing.T) {
	val, err := ID{}.Value()
	require.NoError(t, err)
	assert.Nil(t, val)
}
