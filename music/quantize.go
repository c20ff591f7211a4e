package music

import (
	"bytes"
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
	"gitlab.com/gomidi/quantizer/lib/quantizer"
)

// Quantize snaps the notes of a file to the grid by running it through the
// quantizer and reading the result back.
func Quantize(s *smf.SMF) (*smf.SMF, error) {
	var in, out bytes.Buffer
	if _, err := s.WriteTo(&in); err != nil {
		return nil, fmt.Errorf("quantize: write: %w", err)
	}
	if err := quantizer.Quantize(&in, &out); err != nil {
		return nil, fmt.Errorf("quantize: %w", err)
	}
	q, err := smf.ReadFrom(&out)
	if err != nil {
		return nil, fmt.Errorf("quantize: read back: %w", err)
	}
	return q, nil
}
