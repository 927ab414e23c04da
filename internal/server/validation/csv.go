package validation

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode/utf8"
)

const DefaultVersion = "filingapi-rules/1.0.0"

// CSVEngine validates comma separated files with a header row.
//
// Rows are checked in groups of BatchSize; findings are yielded after every
// BatchCount groups. Syntactical rules run over the whole file first and
// logical rules only run when no syntactical error was found.
type CSVEngine struct {
	Rules      []Rule
	BatchSize  int
	BatchCount int
	RulesetVer string
}

// NewCSVEngine returns an engine running rules. Non-positive batch settings
// fall back to one batch per yield of 50000 rows.
func NewCSVEngine(rules []Rule, batchSize, batchCount int) *CSVEngine {
	if batchSize <= 0 {
		batchSize = 50000
	}
	if batchCount <= 0 {
		batchCount = 1
	}
	return &CSVEngine{Rules: rules, BatchSize: batchSize, BatchCount: batchCount, RulesetVer: DefaultVersion}
}

func (e *CSVEngine) Version() string { return e.RulesetVer }

func (e *CSVEngine) ValidateBatches(ctx context.Context, r io.Reader, vctx Context) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		rows, err := readRows(r)
		if err != nil {
			yield(Batch{}, err)
			return
		}

		budget := vctx.MaxErrors
		for _, phase := range []Phase{PhaseSyntactical, PhaseLogical} {
			var rowRules, registerRules []Rule
			for _, rule := range e.Rules {
				info := rule.Info()
				if info.Phase != phase {
					continue
				}
				if info.Scope == ScopeRegister {
					registerRules = append(registerRules, rule)
				} else {
					rowRules = append(rowRules, rule)
				}
			}

			hasErrors := false
			emit := func(findings []Finding) bool {
				if vctx.MaxErrors > 0 {
					if budget <= 0 {
						findings = nil
					} else if len(findings) > budget {
						findings = findings[:budget]
					}
					budget -= len(findings)
				}
				for _, f := range findings {
					if f.Severity == SeverityError {
						hasErrors = true
					}
				}
				return yield(Batch{Findings: findings, Phase: phase, Records: len(rows)}, nil)
			}

			var pending []Finding
			groups := 0
			for start := 0; start < len(rows); start += e.BatchSize {
				if err := ctx.Err(); err != nil {
					yield(Batch{}, err)
					return
				}
				end := min(start+e.BatchSize, len(rows))
				for _, rule := range rowRules {
					pending = append(pending, rule.Check(vctx, rows[start:end])...)
				}
				groups++
				if groups%e.BatchCount == 0 {
					if !emit(pending) {
						return
					}
					pending = nil
				}
			}
			for _, rule := range registerRules {
				pending = append(pending, rule.Check(vctx, rows)...)
			}
			if !emit(pending) {
				return
			}

			if hasErrors {
				return
			}
		}
	}
}

// readRows parses the whole file. Any structural problem is reported as
// ErrMalformed.
func readRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i, h := range header {
		if !utf8.ValidString(h) {
			return nil, fmt.Errorf("%w: header column %d is not valid UTF-8", ErrMalformed, i+1)
		}
		header[i] = strings.TrimSpace(h)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		row := Row{Number: len(rows) + 1, Values: make(map[string]string, len(header))}
		for i, v := range rec {
			if !utf8.ValidString(v) {
				return nil, fmt.Errorf("%w: record %d is not valid UTF-8", ErrMalformed, row.Number)
			}
			row.Values[header[i]] = v
		}
		row.UID = row.Values[UIDColumn]
		rows = append(rows, row)
	}
	return rows, nil
}
