package compress

import (
	"strings"

	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/pkg/errors"
)

// Compressor compresses packet payloads
type Compressor interface {
	// Compress appends the compressed form of b to c
	Compress(b []byte, c []byte) ([]byte, error)
	// Decompress fills b, which has exactly the uncompressed length, from c
	Decompress(c []byte, b []byte) error
}

var (
	errNotFullyCompressed   = errors.Errorf("not fully compressed")
	errNotFullyDecompressed = errors.Errorf("not fully decompressed")
)

// NewCompressor creates a compressor by format name: snappy or flate
func NewCompressor(compressFormat string) Compressor {
	compressFormat = strings.ToLower(compressFormat)
	if compressFormat == "snappy" {
		return NewSnappyCompressor()
	} else if compressFormat == "flate" {
		return NewFlateCompressor()
	} else {
		gwlog.Panicf("unknown compress format: %s", compressFormat)
		return nil
	}
}
