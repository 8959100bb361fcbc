// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// Export is the document written by ExportYAML and ExportJSON.
type Export struct {
	Summary     Summary                  `json:"summary" yaml:"summary"`
	Conversions []types.ConversionRecord `json:"conversions" yaml:"conversions"`
}

func (s *Store) export(ctx context.Context, limit int) (Export, error) {
	sum, err := s.Summarize(ctx)
	if err != nil {
		return Export{}, err
	}
	records, err := s.Recent(ctx, limit)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	return Export{Summary: sum, Conversions: records}, nil
}

// ExportYAML writes the summary and up to limit recent records as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, limit int) error {
	doc, err := s.export(ctx, limit)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the summary and up to limit recent records as JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, limit int) error {
	doc, err := s.export(ctx, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
