// Package validation defines the contract between the submission processor
// and the rule engine that checks uploaded files, plus a built-in CSV engine.
package validation

import (
	"context"
	"errors"
	"io"
	"iter"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

type Scope string

const (
	ScopeSingleField Scope = "single-field"
	ScopeMultiField  Scope = "multi-field"
	ScopeRegister    Scope = "register"
)

// Phase is a stage of validation. Syntactical always runs before Logical.
type Phase string

const (
	PhaseSyntactical Phase = "SYNTACTICAL"
	PhaseLogical     Phase = "LOGICAL"
)

// ErrMalformed is returned, wrapped, when the content cannot be read as a
// table with a header row.
var ErrMalformed = errors.New("malformed submission file")

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Finding is one rule violation or warning on one record.
type Finding struct {
	ValidationID string   `json:"validation_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Severity     Severity `json:"severity"`
	Scope        Scope    `json:"scope"`
	Link         string   `json:"link,omitempty"`
	Row          int      `json:"row"`
	UID          string   `json:"uid"`
	Fields       []Field  `json:"fields"`
}

// Batch is one chunk of findings from a phase. Records is the number of
// data rows in the file.
type Batch struct {
	Findings []Finding
	Phase    Phase
	Records  int
}

// Context carries what rules may need to know about the filer.
type Context struct {
	LEI string
	// MaxErrors caps the findings yielded over the whole run; zero means no cap.
	MaxErrors int
}

// Engine validates file content. Batches are produced lazily; iteration
// stops at the first error.
type Engine interface {
	Version() string
	ValidateBatches(ctx context.Context, r io.Reader, vctx Context) iter.Seq2[Batch, error]
}
