// Package texconv converts source images into client texture files.
package texconv

import (
	"errors"
	"image"
)

// Encoder turns a decoded image into texture file bytes.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

var (
	// ErrConverterUnavailable is returned when the external converter is not on PATH.
	ErrConverterUnavailable = errors.New("texture converter unavailable")
	// ErrInvalidBLP is returned when decoding malformed BLP data.
	ErrInvalidBLP = errors.New("invalid BLP data")
)

// Select returns the external converter when it can run, otherwise the
// built-in BLP encoder.
func Select(converter string, args []string) Encoder {
	if converter == "" {
		return BLP{}
	}
	ext := &External{Tool: converter, Args: args}
	if ext.Available() != nil {
		return BLP{}
	}
	return ext
}
