package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassCatalog_PreservesOrder(t *testing.T) {
	c, err := NewClassCatalog([]ClassEntry{{ID: 17, Name: "cat"}, {ID: 1, Name: "person"}, {ID: 18, Name: " dog "}})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"cat", "person", "dog"}, c.Names())

	name, ok := c.Name(18)
	assert.True(t, ok)
	assert.Equal(t, "dog", name)

	id, ok := c.ID("person")
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	pos, ok := c.Position(1)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)

	_, ok = c.Name(99)
	assert.False(t, ok)
}

func TestNewClassCatalog_Rejects(t *testing.T) {
	tests := map[string][]ClassEntry{
		"empty":          nil,
		"blank name":     {{ID: 0, Name: "  "}},
		"duplicate id":   {{ID: 0, Name: "a"}, {ID: 0, Name: "b"}},
		"duplicate name": {{ID: 0, Name: "a"}, {ID: 1, Name: "a"}},
	}

	for name, entries := range tests {
		_, err := NewClassCatalog(entries)
		assert.ErrorIs(t, err, ErrInvalidArgument, name)
	}
}

func TestClassCatalog_EntriesIsACopy(t *testing.T) {
	c, err := NewClassCatalogFromNames([]string{"a", "b"})
	require.NoError(t, err)

	entries := c.Entries()
	entries[0].Name = "changed"

	assert.Equal(t, []string{"a", "b"}, c.Names())
}

func TestScoreMap_MarshalKeepsOrder(t *testing.T) {
	m := ScoreMap{{Name: "zebra", Confidence: 0.9}, {Name: "ant", Confidence: 0.1}, {Name: `quo"te`, Confidence: 0}}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":0.9,"ant":0.1,"quo\"te":0}`, string(data))

	data, err = json.Marshal(ScoreMap{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestBinaryMap_MarshalAndGet(t *testing.T) {
	m := BinaryMap{{Name: "b", Detected: 1}, {Name: "a", Detected: 0}}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":0}`, string(data))

	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = m.Get("c")
	assert.False(t, ok)
}

func TestImage_ExtensionAndDigest(t *testing.T) {
	img := NewImage("Holiday.JPEG", []byte("abc"))

	assert.Equal(t, "jpeg", img.Extension())
	assert.Equal(t, int64(3), img.FileSize)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", img.Digest())
	assert.Equal(t, "", NewImage("noext", nil).Extension())
}

func TestBox_Geometry(t *testing.T) {
	b := Box{X1: 10, Y1: 20, X2: 40, Y2: 60}
	assert.Equal(t, 30.0, b.Width())
	assert.Equal(t, 40.0, b.Height())
	assert.Equal(t, 1200.0, b.Area())
	assert.Equal(t, [4]float64{10, 20, 40, 60}, b.Corners())
	assert.Zero(t, Box{X1: 5, X2: 1, Y2: 3}.Area())
}
