package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/maneesh/discloud/internal/models"
)

// DefaultChunkSize is the per-attachment upload limit of the chat transport.
const DefaultChunkSize int64 = 25 * 1024 * 1024

var ErrInvalidChunkSize = errors.New("chunk size must be at least one byte")

// Chunker handles file chunking and reassembly
type Chunker struct {
	chunkSize int64
}

// NewChunker creates a new chunker with the given chunk size.
// Non-positive sizes fall back to DefaultChunkSize.
func NewChunker(chunkSize int64) *Chunker {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{
		chunkSize: chunkSize,
	}
}

// IsSplit reports whether a blob of the given size takes the chunked path.
// A blob exactly at the threshold is stored whole.
func (c *Chunker) IsSplit(size int64) bool {
	return size > c.chunkSize
}

// Split cuts data into ordered segments of at most size bytes. Every segment
// but the last is exactly size bytes. Segments alias data.
func Split(data []byte, size int64) ([][]byte, error) {
	if size < 1 {
		return nil, ErrInvalidChunkSize
	}

	count := (int64(len(data)) + size - 1) / size
	segments := make([][]byte, 0, count)
	for start := int64(0); start < int64(len(data)); start += size {
		end := start + size
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		segments = append(segments, data[start:end:end])
	}
	return segments, nil
}

// Join is the left-to-right concatenation of segments.
func Join(segments [][]byte) []byte {
	totalSize := 0
	for _, s := range segments {
		totalSize += len(s)
	}

	result := make([]byte, 0, totalSize)
	for _, s := range segments {
		result = append(result, s...)
	}
	return result
}

// Chunks splits data into the configured segment size and hashes each
// segment once. Chunk data aliases data.
func (c *Chunker) Chunks(data []byte) ([]*models.ChunkData, error) {
	segments, err := Split(data, c.chunkSize)
	if err != nil {
		return nil, err
	}
	chunks := make([]*models.ChunkData, 0, len(segments))
	for i, segment := range segments {
		chunks = append(chunks, &models.ChunkData{
			Data:       segment,
			OrderIndex: i,
			Hash:       ComputeHash(segment),
			Size:       int64(len(segment)),
		})
	}
	return chunks, nil
}

// PartName is the attachment file name used for chunk index of a split file,
// e.g. "movie.mp4_part2.mp4".
func PartName(name, contentType string, index int) string {
	ext := ""
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
			ext = sub
		}
	}
	if ext == "" || ext == "octet-stream" {
		ext = strings.TrimPrefix(path.Ext(name), ".")
	}
	if ext == "" {
		return fmt.Sprintf("%s_part%d", name, index)
	}
	return fmt.Sprintf("%s_part%d.%s", name, index, ext)
}

// ComputeHash computes SHA256 hash of data
func ComputeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
