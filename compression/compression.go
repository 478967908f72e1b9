// Package compression provides the per-batch codecs applied after
// serialization and before transmission. Round trips are exact:
// Decompress(Compress(x)) == x for every codec.
package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm names accepted by New and by configuration.
const (
	None   = "none"
	Gzip   = "gzip"
	Zstd   = "zstd"
	LZ4    = "lz4"
	Snappy = "snappy"
)

// Codec compresses and decompresses whole batch payloads.
type Codec interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// New returns the codec for the named algorithm. Level applies to gzip and
// zstd; lz4 and snappy ignore it. Levels outside 1..9 are a configuration
// error.
func New(algorithm string, level int) (Codec, error) {
	switch algorithm {
	case "", None:
		return noneCodec{}, nil
	case Gzip:
		if level < 1 || level > 9 {
			return nil, fmt.Errorf("gzip level %d out of range 1..9", level)
		}
		return &gzipCodec{level: level}, nil
	case Zstd:
		if level < 1 || level > 9 {
			return nil, fmt.Errorf("zstd level %d out of range 1..9", level)
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		return &zstdCodec{enc: enc, dec: dec}, nil
	case LZ4:
		return lz4Codec{}, nil
	case Snappy:
		return snappyCodec{}, nil
	}
	return nil, fmt.Errorf("unknown compression algorithm %q", algorithm)
}

type noneCodec struct{}

func (noneCodec) Name() string { return None }

func (noneCodec) Compress(src []byte) ([]byte, error) { return src, nil }

func (noneCodec) Decompress(src []byte) ([]byte, error) { return src, nil }

type gzipCodec struct {
	level int
}

func (*gzipCodec) Name() string { return Gzip }

func (c *gzipCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(src) / 2)
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) Decompress(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (*zstdCodec) Name() string { return Zstd }

func (c *zstdCodec) Compress(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}

func (c *zstdCodec) Decompress(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, nil)
	if err == nil && out == nil {
		out = []byte{}
	}
	return out, err
}

// lz4Codec uses the block format behind a 5-byte header: uncompressed length
// as little-endian uint32 plus a flag byte (0 = stored, 1 = compressed).
// Incompressible input is stored rather than expanded.
type lz4Codec struct{}

const (
	lz4HeaderLen = 5
	lz4Stored    = 0
	lz4Block     = 1
)

func (lz4Codec) Name() string { return LZ4 }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4HeaderLen+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(dst, uint32(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst[lz4HeaderLen:])
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(src) {
		dst[4] = lz4Stored
		return append(dst[:lz4HeaderLen], src...), nil
	}
	dst[4] = lz4Block
	return dst[:lz4HeaderLen+n], nil
}

func (lz4Codec) Decompress(src []byte) ([]byte, error) {
	if len(src) < lz4HeaderLen {
		return nil, fmt.Errorf("lz4 payload too short: %d bytes", len(src))
	}
	size := binary.LittleEndian.Uint32(src)
	if src[4] == lz4Stored {
		dst := make([]byte, size)
		copy(dst, src[lz4HeaderLen:])
		return dst, nil
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src[lz4HeaderLen:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return Snappy }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decompress(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err == nil && out == nil {
		out = []byte{}
	}
	return out, err
}
