package packer

import "github.com/pkg/errors"

var (
	// ErrInvalidPackerConfig is returned when a packer is constructed with parameters it cannot encode
	ErrInvalidPackerConfig = errors.New("invalid packer config")
	// ErrVarIntOverflow is returned when an unpacked integer does not fit the requested type or tier
	ErrVarIntOverflow = errors.New("var int overflow")
)
