// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ErrorKind classifies why a conversion, or one attempt of it, failed.
type ErrorKind string

const (
	KindValidation        ErrorKind = "ValidationError"
	KindResource          ErrorKind = "ResourceError"
	KindToolNotFound      ErrorKind = "ToolNotFound"
	KindToolTimeout       ErrorKind = "ToolTimeout"
	KindToolExecution     ErrorKind = "ToolExecutionError"
	KindArtifactNotFound  ErrorKind = "ArtifactNotFound"
	KindArtifactReadError ErrorKind = "ArtifactReadError"
	KindInternal          ErrorKind = "InternalError"
)

// ConversionStatus is the final state of one conversion request.
type ConversionStatus string

const (
	ConversionDone    ConversionStatus = "converted"
	ConversionFailed  ConversionStatus = "failed"
	ConversionInvalid ConversionStatus = "rejected"
)

// Attempt records one strategy's failed try within a conversion.
type Attempt struct {
	Strategy string        `json:"strategy" yaml:"strategy"`
	Kind     ErrorKind     `json:"kind" yaml:"kind"`
	Detail   string        `json:"detail" yaml:"detail"`
	Duration time.Duration `json:"-" yaml:"-"`
}

// ConversionRecord is the audit view of a finished conversion.
type ConversionRecord struct {
	ID        string           `json:"id" yaml:"id"`
	Filename  string           `json:"filename" yaml:"filename"`
	Status    ConversionStatus `json:"status" yaml:"status"`
	Strategy  string           `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Pages     int              `json:"pages,omitempty" yaml:"pages,omitempty"`
	Bytes     int64            `json:"bytes" yaml:"bytes"`
	StartedAt time.Time        `json:"started_at" yaml:"started_at"`
	Duration  time.Duration    `json:"duration" yaml:"duration"`
	Attempts  []Attempt        `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}
