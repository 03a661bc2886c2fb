package compress

import (
	"github.com/golang/snappy"
)

// NewSnappyCompressor creates a snappy block compressor
func NewSnappyCompressor() Compressor {
	return snappyCompressor{}
}

type snappyCompressor struct{}

func (snappyCompressor) Compress(b []byte, c []byte) ([]byte, error) {
	need := len(c) + snappy.MaxEncodedLen(len(b))
	if cap(c) < need {
		nc := make([]byte, len(c), need)
		copy(nc, c)
		c = nc
	}
	encoded := snappy.Encode(c[len(c):need], b)
	return c[:len(c)+len(encoded)], nil
}

func (snappyCompressor) Decompress(c []byte, b []byte) error {
	n, err := snappy.DecodedLen(c)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errNotFullyDecompressed
	}
	decoded, err := snappy.Decode(b, c)
	if err != nil {
		return err
	}
	if len(decoded) != len(b) {
		return errNotFullyDecompressed
	}
	if len(b) > 0 && &decoded[0] != &b[0] {
		copy(b, decoded)
	}
	return nil
}
