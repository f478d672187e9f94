// Package scanner abstracts barcode acquisition. A Scanner delivers at most one
// decoded code per Start: it stops itself before handing the code over and
// detects nothing further until it is started again.
package scanner

import (
	"context"
	"errors"
	"fmt"
)

var ErrCameraUnavailable = errors.New("scanner device unavailable")

type Scanner interface {
	// Start begins detection. onDecode is called once, after detection has
	// already been paused.
	Start(ctx context.Context, onDecode func(code string)) error
	Stop()
}

// Symbology names follow the reader identifiers of the in-browser decoder.
type Symbology string

const (
	Code128 Symbology = "code_128_reader"
	EAN13   Symbology = "ean_reader"
	EAN8    Symbology = "ean_8_reader"
	Code39  Symbology = "code_39_reader"
	UPC     Symbology = "upc_reader"
)

var DefaultSymbologies = []Symbology{Code128, EAN13, EAN8}

var knownSymbologies = map[Symbology]bool{
	Code128: true,
	EAN13:   true,
	EAN8:    true,
	Code39:  true,
	UPC:     true,
}

func ValidateSymbologies(symbologies []Symbology) error {
	if len(symbologies) == 0 {
		return errors.New("at least one symbology is required")
	}
	for _, s := range symbologies {
		if !knownSymbologies[s] {
			return fmt.Errorf("unsupported symbology: %s", s)
		}
	}
	return nil
}
