package chunkstore

import (
	"encoding/hex"
	"fmt"
	"mime"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// Compression identifies the algorithm used to store a chunk payload.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	// Used for already compressed media and incompressible chunks.
	CompressionNone Compression = iota
	// CompressionLZ4 is the default for binary payloads.
	CompressionLZ4
	// CompressionZstd is used for text-like payloads (SVG, JSON, XML...).
	CompressionZstd
)

var errIncompressible = errors.New("incompressible chunk")

// String returns the name stored in chunk records.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression from its name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, errors.Errorf("unknown compression: %q", name)
	}
}

// CompressionFor returns the compression used for the chunks of the given content type.
func CompressionFor(contentType string) Compression {
	mediatype, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediatype = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case mediatype == "image/svg+xml",
		strings.HasPrefix(mediatype, "text/"),
		mediatype == "application/json",
		mediatype == "application/xml",
		strings.HasSuffix(mediatype, "+json"),
		strings.HasSuffix(mediatype, "+xml"):
		return CompressionZstd
	case strings.HasPrefix(mediatype, "video/"),
		strings.HasPrefix(mediatype, "audio/"),
		mediatype == "image/jpeg",
		mediatype == "image/png",
		mediatype == "image/gif",
		mediatype == "image/webp",
		mediatype == "application/zip",
		mediatype == "application/gzip":
		return CompressionNone
	default:
		return CompressionLZ4
	}
}

// encode compresses data with c. It falls back to CompressionNone when the chunk does not shrink.
// data is never modified.
func encode(data []byte, c Compression) ([]byte, Compression, error) {
	var payload []byte
	var err error

	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		payload, err = compressLZ4(data)
	case CompressionZstd:
		payload, err = compressZstd(data)
	default:
		return nil, c, errors.Errorf("unsupported compression: %s", c)
	}

	if err == errIncompressible {
		return data, CompressionNone, nil
	}
	return payload, c, err
}

// decode decompresses data and checks it has the expected size.
func decode(data []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) != size {
			return nil, errors.Errorf("uncompressed chunk: size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case CompressionLZ4:
		return decompressLZ4(data, size)
	case CompressionZstd:
		return decompressZstd(data, size)
	default:
		return nil, errors.Errorf("unsupported compression: %s", c)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}

	// CompressBlock returns 0 for incompressible data.
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return destination[:n], nil
}

func decompressLZ4(data []byte, size int) ([]byte, error) {
	destination := make([]byte, size)

	n, err := lz4.UncompressBlock(data, destination)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	if n != size {
		return nil, errors.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use with EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("chunkstore: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("chunkstore: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(data []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
	if err != nil {
		return nil, errors.Wrap(err, "zstd decompress")
	}
	if len(result) != size {
		return nil, errors.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}

// HashChunk returns the hex encoded BLAKE3 digest of a chunk payload.
func HashChunk(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
