package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// MagicBytes identifies a .dsix container ("DSIX" on disk).
const (
	MagicBytes    uint32 = 0x58495344
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	MaxRawSize    uint64 = 1 << 30

	// Decompression buffers start at most this many times the payload size;
	// the header's raw size is only trusted as an upper bound.
	expansionHint = 16
	minBufferHint = 4 << 10
)

// Compression selects the payload codec of a container.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCompression maps a configuration name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q: %w", name, apperrors.ErrInvalidInput)
	}
}

// Header is the fixed 32-byte container header:
//
//	[0:4] magic  [4:8] version  [8] compression  [9:12] reserved
//	[12:16] crc32(raw)  [16:24] raw size  [24:32] payload size
type Header struct {
	Magic       uint32      `json:"magic"`
	Version     uint32      `json:"version"`
	Compression Compression `json:"compression"`
	Checksum    uint32      `json:"checksum"`
	RawSize     uint64      `json:"raw_size"`
	PayloadSize uint64      `json:"payload_size"`
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxRawSize))
}

// Wrap places raw index JSON into a container.
func Wrap(raw []byte, c Compression) ([]byte, error) {
	payload, err := compress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("compressing payload with %s: %w", c, err)
	}
	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(out[4:8], FormatVersion)
	out[8] = byte(c)
	binary.LittleEndian.PutUint32(out[12:16], crc32.ChecksumIEEE(raw))
	binary.LittleEndian.PutUint64(out[16:24], uint64(len(raw)))
	binary.LittleEndian.PutUint64(out[24:32], uint64(len(payload)))
	return append(out, payload...), nil
}

// IsContainer reports whether data starts with the container magic.
func IsContainer(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) == MagicBytes
}

// Open returns the raw index JSON held in data. Data without the container
// magic is returned unchanged with a nil header.
func Open(data []byte) ([]byte, *Header, error) {
	if !IsContainer(data) {
		return data, nil, nil
	}
	if len(data) < HeaderSize {
		return nil, nil, fmt.Errorf("container header truncated at %d bytes: %w", len(data), apperrors.ErrInvalidContainer)
	}
	h := &Header{
		Magic:       binary.LittleEndian.Uint32(data[0:4]),
		Version:     binary.LittleEndian.Uint32(data[4:8]),
		Compression: Compression(data[8]),
		Checksum:    binary.LittleEndian.Uint32(data[12:16]),
		RawSize:     binary.LittleEndian.Uint64(data[16:24]),
		PayloadSize: binary.LittleEndian.Uint64(data[24:32]),
	}
	if h.Version != FormatVersion {
		return nil, nil, fmt.Errorf("container version %d: %w", h.Version, apperrors.ErrInvalidContainer)
	}
	if h.RawSize > MaxRawSize {
		return nil, nil, fmt.Errorf("container raw size %d exceeds limit: %w", h.RawSize, apperrors.ErrInvalidContainer)
	}
	payload := data[HeaderSize:]
	if uint64(len(payload)) != h.PayloadSize {
		return nil, nil, fmt.Errorf("container payload is %d bytes, header says %d: %w", len(payload), h.PayloadSize, apperrors.ErrInvalidContainer)
	}
	raw, err := decompress(payload, h.Compression, h.RawSize)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing %s payload: %w: %v", h.Compression, apperrors.ErrInvalidContainer, err)
	}
	if uint64(len(raw)) != h.RawSize {
		return nil, nil, fmt.Errorf("decompressed %d bytes, header says %d: %w", len(raw), h.RawSize, apperrors.ErrInvalidContainer)
	}
	if crc32.ChecksumIEEE(raw) != h.Checksum {
		return nil, nil, apperrors.ErrChecksumMismatch
	}
	return raw, h, nil
}

// WriteFile atomically writes data to path via a temporary file and rename.
// The temporary file is removed when any step fails.
func WriteFile(path string, data []byte) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

func compress(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

func decompress(payload []byte, c Compression, rawSize uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		out := bytes.NewBuffer(make([]byte, 0, bufferHint(rawSize, len(payload))))
		if _, err := io.Copy(out, io.LimitReader(lz4.NewReader(bytes.NewReader(payload)), int64(rawSize)+1)); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		return dec.DecodeAll(payload, make([]byte, 0, bufferHint(rawSize, len(payload))))
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// bufferHint is the initial capacity for decompressing payloadLen bytes that
// claim to expand to rawSize.
func bufferHint(rawSize uint64, payloadLen int) int {
	limit := max(uint64(payloadLen)*expansionHint, minBufferHint)
	return int(min(rawSize, limit))
}
