package wordpress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/serplens/engine/pkg/types"
)

// Cached payloads carry a one-byte algorithm marker so the reader needs no
// out-of-band metadata to decode them.
const (
	markerNone   byte = 0x00
	markerSnappy byte = 0x01
	markerLZ4    byte = 0x02
)

// ErrDecompression is returned when cache decompression fails.
// Use errors.Is(err, ErrDecompression) to check for decompression errors.
var ErrDecompression = errors.New("decompression failed")

// Compress encodes a payload for cache storage using the specified algorithm.
// Returns the encoded bytes and the algorithm actually applied. Payloads
// below types.CompressionMinSize and unknown algorithms stay uncompressed.
func Compress(payload []byte, algorithm string) ([]byte, string, error) {
	// Skip compression for small content
	if len(payload) < types.CompressionMinSize {
		return withMarker(markerNone, payload), types.CompressionNone, nil
	}

	switch algorithm {
	case types.CompressionSnappy:
		compressed := snappy.Encode(nil, payload)
		return withMarker(markerSnappy, compressed), types.CompressionSnappy, nil

	case types.CompressionLZ4:
		// Use LZ4 stream format which embeds size information
		var buf bytes.Buffer
		buf.WriteByte(markerLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			w.Close()
			return nil, "", fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return buf.Bytes(), types.CompressionLZ4, nil

	default:
		// "none", empty, or unknown algorithm
		return withMarker(markerNone, payload), types.CompressionNone, nil
	}
}

// Decompress decodes a cache payload produced by Compress.
// Returns the original bytes and the algorithm that had been applied.
func Decompress(encoded []byte) ([]byte, string, error) {
	if len(encoded) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrDecompression)
	}

	marker, body := encoded[0], encoded[1:]
	switch marker {
	case markerNone:
		return body, types.CompressionNone, nil

	case markerSnappy:
		decompressed, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: snappy: %w", ErrDecompression, err)
		}
		return decompressed, types.CompressionSnappy, nil

	case markerLZ4:
		r := lz4.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(r)
		if err != nil {
			return nil, "", fmt.Errorf("%w: lz4: %w", ErrDecompression, err)
		}
		return decompressed, types.CompressionLZ4, nil

	default:
		return nil, "", fmt.Errorf("%w: unknown algorithm marker 0x%02x", ErrDecompression, marker)
	}
}

func withMarker(marker byte, body []byte) []byte {
	encoded := make([]byte, 0, len(body)+1)
	encoded = append(encoded, marker)
	return append(encoded, body...)
}
