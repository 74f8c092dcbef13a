package chunker

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestSplitJoinRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 7, 64, 100, 1000} {
		data := randomBytes(t, size)
		for _, n := range []int64{1, 3, 7, 64, 99, 100, 101, 4096} {
			segments, err := Split(data, n)
			require.NoError(t, err)

			want := (int64(size) + n - 1) / n
			require.Len(t, segments, int(want), "len=%d n=%d", size, n)
			for i, s := range segments {
				if i < len(segments)-1 {
					require.Len(t, s, int(n))
				} else {
					require.LessOrEqual(t, int64(len(s)), n)
					require.NotEmpty(t, s)
				}
			}
			require.True(t, bytes.Equal(data, Join(segments)))
		}
	}
}

func TestSplitRejectsNonPositiveSize(t *testing.T) {
	_, err := Split([]byte("abc"), 0)
	require.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestSplitSegmentsDoNotGrowIntoNeighbours(t *testing.T) {
	data := []byte("aabbcc")
	segments, err := Split(data, 2)
	require.NoError(t, err)

	segments[0] = append(segments[0], 'x')
	require.Equal(t, []byte("aabbcc"), data)
}

func TestChunkerThreshold(t *testing.T) {
	c := NewChunker(DefaultChunkSize)

	require.False(t, c.IsSplit(DefaultChunkSize))
	require.True(t, c.IsSplit(DefaultChunkSize+1))
}

func TestNewChunkerDefaultsInvalidSize(t *testing.T) {
	c := NewChunker(0)
	require.False(t, c.IsSplit(DefaultChunkSize))
	require.True(t, c.IsSplit(DefaultChunkSize+1))
}

func TestChunks(t *testing.T) {
	c := NewChunker(4)
	data := []byte("0123456789")

	chunks, err := c.Chunks(data)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	var total int64
	for i, ch := range chunks {
		require.Equal(t, i, ch.OrderIndex)
		require.Equal(t, ComputeHash(ch.Data), ch.Hash)
		total += ch.Size
	}
	require.Equal(t, int64(10), total)
	require.Equal(t, []byte("89"), chunks[2].Data)
	require.Equal(t, "cd70bea023f752a0564abb6ed08d42c1440f2e33e29914e55e0be1595e24f45a", chunks[2].Hash)

	empty, err := c.Chunks(nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestPartName(t *testing.T) {
	tests := []struct {
		name, contentType string
		index             int
		want              string
	}{
		{"movie.mp4", "video/mp4", 0, "movie.mp4_part0.mp4"},
		{"notes.txt", "text/plain; charset=utf-8", 2, "notes.txt_part2.plain"},
		{"blob.bin", "application/octet-stream", 1, "blob.bin_part1.bin"},
		{"README", "", 3, "README_part3"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, PartName(tt.name, tt.contentType, tt.index))
	}
}
