// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package process

import (
	"os"

	"github.com/rs/zerolog"
)

// capture collects one output stream of a tool in a temporary file.
type capture struct {
	f *os.File
}

func newCapture(stream string) (*capture, error) {
	f, err := os.CreateTemp("", "mdconvert-"+stream+"-*")
	if err != nil {
		return nil, err
	}
	return &capture{f: f}, nil
}

// read returns what was written so far. It reads through the path because
// the descriptor shares its offset with the tool.
func (c *capture) read() string {
	data, err := os.ReadFile(c.f.Name())
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *capture) discard(log zerolog.Logger) {
	_ = c.f.Close()
	if err := os.Remove(c.f.Name()); err != nil {
		log.Debug().Err(err).Str("path", c.f.Name()).Msg("removing output capture")
	}
}
