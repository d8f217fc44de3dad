package pixeldata

import (
	"testing"

	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nativeEntry(t *testing.T, buf ...byte) *Entry {
	t.Helper()
	e, err := NewNative(Width8, buf)
	require.NoError(t, err)
	return e
}

func encapsEntry(t *testing.T, ts transfer.Syntax, param Parameter, frag ...byte) *Entry {
	t.Helper()
	e, err := NewEncapsulated(Key{Syntax: ts, Param: param}, &Encapsulated{Fragments: [][]byte{frag}})
	require.NoError(t, err)
	return e
}

func TestStore_SetOriginal(t *testing.T) {
	var s Store
	_, ok := s.Original()
	assert.False(t, ok)
	_, ok = s.Current()
	assert.False(t, ok)

	s.InsertOrReplace(nativeEntry(t, 1))
	s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))
	h := s.SetOriginal(encapsEntry(t, transfer.JPEGLSLossless, nil, 3))

	assert.Equal(t, 1, s.Len())
	orig, _ := s.Original()
	cur, _ := s.Current()
	assert.Equal(t, h, orig)
	assert.Equal(t, h, cur)
}

func TestStore_InsertOrReplace(t *testing.T) {
	var s Store
	orig := s.SetOriginal(nativeEntry(t, 1, 2))

	rle := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 9))
	assert.Equal(t, 2, s.Len())

	again := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 7))
	assert.Equal(t, rle, again, "a conforming entry is replaced in place")
	assert.Equal(t, 2, s.Len())
	e, err := s.Entry(rle)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, e.Encapsulated().Fragments[0])

	// a native entry replaces the native original and keeps it original
	replaced := s.InsertOrReplace(nativeEntry(t, 5))
	assert.Equal(t, orig, replaced)
	h, _ := s.Original()
	assert.Equal(t, orig, h)

	// a different parameter is a different representation
	s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, RLEParameter{FragmentSize: 2}, 7))
	assert.Equal(t, 3, s.Len())
}

func TestStore_SetCurrent(t *testing.T) {
	var s Store
	s.SetOriginal(nativeEntry(t, 1))
	h := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))
	require.NoError(t, s.SetCurrent(h))
	cur, _ := s.Current()
	assert.Equal(t, h, cur)

	assert.ErrorIs(t, s.SetCurrent(Handle{}), ErrRepresentationNotFound)
	require.NoError(t, s.RemoveConforming(Key{Syntax: transfer.RLELossless}))
	assert.ErrorIs(t, s.SetCurrent(h), ErrRepresentationNotFound, "stale handle")
}

func TestStore_RemoveConforming(t *testing.T) {
	var s Store
	orig := s.SetOriginal(nativeEntry(t, 1))
	rle := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))
	require.NoError(t, s.SetCurrent(rle))

	err := s.RemoveConforming(Key{Syntax: transfer.ImplicitVRLittleEndian})
	assert.ErrorIs(t, err, ErrIllegalCall, "the original cannot be removed")
	assert.Equal(t, 2, s.Len())

	err = s.RemoveConforming(Key{Syntax: transfer.JPEG2000})
	assert.ErrorIs(t, err, ErrRepresentationNotFound)

	require.NoError(t, s.RemoveConforming(Key{Syntax: transfer.RLELossless}))
	assert.Equal(t, 1, s.Len())
	cur, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, orig, cur, "current falls back to the original")
}

func TestStore_RetainOnly(t *testing.T) {
	var s Store
	s.SetOriginal(nativeEntry(t, 1))
	rle := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))
	s.InsertOrReplace(encapsEntry(t, transfer.JPEGLSLossless, nil, 3))
	require.NoError(t, s.SetCurrent(rle))

	require.NoError(t, s.RetainOnly(rle))
	assert.Equal(t, 1, s.Len())
	orig, _ := s.Original()
	cur, _ := s.Current()
	assert.Equal(t, rle, orig)
	assert.Equal(t, rle, cur)

	assert.ErrorIs(t, s.RetainOnly(Handle{}), ErrRepresentationNotFound)
}

func TestStore_ReplaceOriginal(t *testing.T) {
	t.Run("old original destroyed", func(t *testing.T) {
		var s Store
		s.SetOriginal(nativeEntry(t, 1))
		rle := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))
		require.NoError(t, s.SetCurrent(rle))

		require.NoError(t, s.ReplaceOriginal(Key{Syntax: transfer.RLELossless}))
		assert.Equal(t, 1, s.Len())
		orig, _ := s.Original()
		assert.Equal(t, rle, orig)
	})
	t.Run("old original kept while current", func(t *testing.T) {
		var s Store
		native := s.SetOriginal(nativeEntry(t, 1))
		rle := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))

		require.NoError(t, s.ReplaceOriginal(Key{Syntax: transfer.RLELossless}))
		assert.Equal(t, 2, s.Len())
		orig, _ := s.Original()
		cur, _ := s.Current()
		assert.Equal(t, rle, orig)
		assert.Equal(t, native, cur)

		// the old original is now an ordinary entry
		require.NoError(t, s.RemoveConforming(NativeKey()))
		cur, _ = s.Current()
		assert.Equal(t, rle, cur)
	})
	t.Run("missing", func(t *testing.T) {
		var s Store
		s.SetOriginal(nativeEntry(t, 1))
		assert.ErrorIs(t, s.ReplaceOriginal(Key{Syntax: transfer.RLELossless}), ErrRepresentationNotFound)
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_ClearAndClone(t *testing.T) {
	var s Store
	orig := s.SetOriginal(nativeEntry(t, 1, 2))
	rle := s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))

	c := s.Clone()
	s.Clear()
	assert.Zero(t, s.Len())
	_, ok := s.Current()
	assert.False(t, ok)
	_, err := s.Entry(orig)
	assert.ErrorIs(t, err, ErrRepresentationNotFound)

	assert.Equal(t, 2, c.Len())
	e, err := c.Entry(rle)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, e.Encapsulated().Fragments[0])
	h, _ := c.Original()
	assert.Equal(t, orig, h)

	// handles from before Clear never resolve to new entries
	s.SetOriginal(nativeEntry(t, 3))
	_, err = s.Entry(orig)
	assert.ErrorIs(t, err, ErrRepresentationNotFound)
}

func TestStore_All(t *testing.T) {
	var s Store
	s.SetOriginal(nativeEntry(t, 1))
	s.InsertOrReplace(encapsEntry(t, transfer.RLELossless, nil, 2))
	s.InsertOrReplace(encapsEntry(t, transfer.JPEGLSLossless, nil, 3))

	var keys []Key
	for _, e := range s.All() {
		keys = append(keys, e.Key())
		if len(keys) == 2 {
			break
		}
	}
	assert.Equal(t, []Key{NativeKey(), {Syntax: transfer.RLELossless}}, keys)
}
