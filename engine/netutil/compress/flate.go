package compress

import (
	"bytes"
	"compress/flate"
	"io"
	"io/ioutil"
)

// NewFlateCompressor creates a flate compressor tuned for speed
func NewFlateCompressor() Compressor {
	fc := &flateCompressor{
		reader: flate.NewReader(bytes.NewReader(nil)),
	}
	var err error
	fc.writer, err = flate.NewWriter(ioutil.Discard, flate.BestSpeed)
	if err != nil {
		panic(err)
	}
	return fc
}

type flateCompressor struct {
	writer *flate.Writer
	reader io.ReadCloser
}

func (fc *flateCompressor) Compress(b []byte, c []byte) ([]byte, error) {
	wb := bytes.NewBuffer(c)
	fc.writer.Reset(wb)
	n, err := fc.writer.Write(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, errNotFullyCompressed
	}

	if err = fc.writer.Close(); err != nil {
		return nil, err
	}
	return wb.Bytes(), nil
}

func (fc *flateCompressor) Decompress(c []byte, b []byte) error {
	if err := fc.reader.(flate.Resetter).Reset(bytes.NewReader(c), nil); err != nil {
		return err
	}
	_, err := io.ReadFull(fc.reader, b)
	return err
}
