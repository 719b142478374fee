package envelope

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"sealkit/internal/codec"
)

// Compression names the algorithm applied to file content before sealing.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionLZ4  Compression = 2
)

// ParseCompression maps a configuration value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// MaxFileSize bounds the decompressed size of file content.
const MaxFileSize = 1 << 30

var errIncompressible = errors.New("content does not compress")

// FilePayload is the plaintext of a file envelope.
type FilePayload struct {
	Filename    string      `cbor:"1,keyasint"`
	MessageID   string      `cbor:"2,keyasint"`
	Compression Compression `cbor:"3,keyasint"`
	Size        int         `cbor:"4,keyasint"`
	Content     []byte      `cbor:"5,keyasint"`
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("envelope: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFileSize))
	if err != nil {
		panic("envelope: zstd decoder initialization failed: " + err.Error())
	}
}

// MarshalFilePayload builds the plaintext of a file envelope. The content is
// compressed with algo only when that makes it smaller.
func MarshalFilePayload(filename string, content []byte, algo Compression) ([]byte, error) {
	p := FilePayload{
		Filename:    filename,
		MessageID:   uuid.NewString(),
		Compression: CompressionNone,
		Size:        len(content),
		Content:     content,
	}
	if compressed, err := compress(content, algo); err == nil {
		p.Compression = algo
		p.Content = compressed
	} else if !errors.Is(err, errIncompressible) {
		return nil, err
	}
	return codec.Marshal(p)
}

// UnmarshalFilePayload parses and decompresses the plaintext of a file envelope.
func UnmarshalFilePayload(b []byte) (FilePayload, error) {
	var p FilePayload
	if err := codec.Unmarshal(b, &p); err != nil {
		return FilePayload{}, ErrMalformed
	}
	if p.Size < 0 || p.Size > MaxFileSize {
		return FilePayload{}, ErrMalformed
	}
	content, err := decompress(p.Content, p.Compression, p.Size)
	if err != nil {
		return FilePayload{}, err
	}
	p.Content = content
	p.Compression = CompressionNone
	return p, nil
}

func compress(data []byte, algo Compression) ([]byte, error) {
	switch algo {
	case CompressionNone:
		return nil, errIncompressible
	case CompressionZstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// n == 0 means lz4 found nothing to compress.
		if n == 0 || n >= len(data) {
			return nil, errIncompressible
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("unknown compression %d", algo)
	}
}

func decompress(data []byte, algo Compression, size int) ([]byte, error) {
	switch algo {
	case CompressionNone:
		if len(data) != size {
			return nil, ErrMalformed
		}
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, ErrMalformed
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, ErrMalformed
		}
		return out, nil
	default:
		return nil, ErrMalformed
	}
}
