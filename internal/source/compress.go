package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	extGzip = ".gz"
	extZstd = ".zst"
)

// MaxDocumentSize caps how large a compressed document may inflate to.
const MaxDocumentSize = 64 << 20

// ErrTooLarge is returned when a compressed document inflates past its cap.
var ErrTooLarge = errors.New("document too large")

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder = mustZstdDecoder(MaxDocumentSize)

func mustZstdDecoder(limit int64) *zstd.Decoder {
	d, err := NewZstdDecoder(limit)
	if err != nil {
		panic("source: zstd decoder initialization failed: " + err.Error())
	}
	return d
}

// NewZstdDecoder returns a decoder for DecodeAll whose output may not
// exceed limit bytes.
func NewZstdDecoder(limit int64) (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
}

// Decompress returns data unchanged unless name carries a .gz or .zst
// extension, in which case the payload is inflated up to MaxDocumentSize.
func Decompress(name string, data []byte) ([]byte, error) {
	return decompress(name, data, zstdDecoder, MaxDocumentSize)
}

func decompress(name string, data []byte, zd *zstd.Decoder, limit int64) ([]byte, error) {
	switch {
	case strings.HasSuffix(name, extGzip):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("source: gunzip %s: %w", name, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, limit+1))
		if err != nil {
			return nil, fmt.Errorf("source: gunzip %s: %w", name, err)
		}
		if int64(len(out)) > limit {
			return nil, fmt.Errorf("source: gunzip %s: %w: over %d bytes", name, ErrTooLarge, limit)
		}
		return out, nil
	case strings.HasSuffix(name, extZstd):
		out, err := zd.DecodeAll(data, nil)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
			return nil, fmt.Errorf("source: zstd %s: %w: over %d bytes", name, ErrTooLarge, limit)
		}
		if err != nil {
			return nil, fmt.Errorf("source: zstd %s: %w", name, err)
		}
		return out, nil
	default:
		return data, nil
	}
}

func trimCompression(name string) string {
	for _, ext := range []string{extGzip, extZstd} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
