// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// FailureMessage is the client-facing error for every failed conversion.
const FailureMessage = "Marker conversion failed"

// InvalidMessage is the client-facing error for a rejected upload name.
const InvalidMessage = "No PDF file selected"

// Result is the outcome of one conversion request. Markdown is set if and
// only if OK is true.
type Result struct {
	ID       string
	OK       bool
	Markdown string
	Strategy string

	// Kind classifies a failure: ValidationError, ResourceError and
	// InternalError stop before or outside the pipeline; otherwise it is
	// the kind of the last failed attempt.
	Kind     types.ErrorKind
	Error    string
	Details  string
	Attempts []types.Attempt

	Pages int
}

// Status maps the result onto its audit status.
func (r Result) Status() types.ConversionStatus {
	switch {
	case r.OK:
		return types.ConversionDone
	case r.Kind == types.KindValidation:
		return types.ConversionInvalid
	default:
		return types.ConversionFailed
	}
}

// Aggregate turns a pipeline outcome into a Result. A failure joins one
// "<strategy>: <kind>: <detail>" line per attempt into Details.
func Aggregate(out convert.Outcome) Result {
	if out.Succeeded() {
		return Result{
			OK:       true,
			Markdown: out.Success.Markdown,
			Strategy: out.Success.Strategy,
			Attempts: out.Attempts,
		}
	}

	lines := make([]string, len(out.Attempts))
	for i, a := range out.Attempts {
		lines[i] = fmt.Sprintf("%s: %s: %s", a.Strategy, a.Kind, a.Detail)
	}
	res := Result{
		Kind:     types.KindInternal,
		Error:    FailureMessage,
		Details:  strings.Join(lines, "; "),
		Attempts: out.Attempts,
	}
	if n := len(out.Attempts); n > 0 {
		res.Kind = out.Attempts[n-1].Kind
	} else {
		res.Details = "no strategy was attempted"
	}
	return res
}

// fault builds the Result for a failure outside the strategy chain.
func fault(kind types.ErrorKind, err error) Result {
	return Result{
		Kind:    kind,
		Error:   FailureMessage,
		Details: fmt.Sprintf("%s: %v", kind, err),
	}
}

func invalid(err error) Result {
	return Result{
		Kind:    types.KindValidation,
		Error:   InvalidMessage,
		Details: err.Error(),
	}
}
