package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"github.com/dmitrijs2005/filingapi/internal/server/validation"
)

// ReportRecord is one offending record inside a report detail.
type ReportRecord struct {
	RecordNo int                `json:"record_no"`
	UID      string             `json:"uid"`
	Fields   []validation.Field `json:"fields"`
}

type ReportValidation struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Severity    validation.Severity `json:"severity"`
	Scope       validation.Scope    `json:"scope"`
	Link        string              `json:"link,omitempty"`
}

// ReportDetail groups the records failing one validation.
type ReportDetail struct {
	Validation ReportValidation `json:"validation"`
	Records    []ReportRecord   `json:"records"`
}

type ReportGroup struct {
	SingleFieldCount int            `json:"single_field_count"`
	MultiFieldCount  int            `json:"multi_field_count"`
	RegisterCount    int            `json:"register_count"`
	TotalCount       int            `json:"total_count"`
	Details          []ReportDetail `json:"details"`
}

// Report is the validation_results document stored on a submission.
// The logic groups are absent when validation stopped at the syntactical phase.
type Report struct {
	SyntaxErrors  ReportGroup  `json:"syntax_errors"`
	LogicErrors   *ReportGroup `json:"logic_errors,omitempty"`
	LogicWarnings *ReportGroup `json:"logic_warnings,omitempty"`
}

// BuildValidationResults turns raw findings of the final phase into a Report.
// Counts cover every finding; each detail keeps at most maxGroupSize records
// (no cap when maxGroupSize <= 0). The output depends only on the input.
func BuildValidationResults(findings []validation.Finding, phase validation.Phase, maxGroupSize int) Report {
	if phase == validation.PhaseSyntactical {
		return Report{SyntaxErrors: buildGroup(findings, maxGroupSize)}
	}

	var errs, warns []validation.Finding
	for _, f := range findings {
		if f.Severity == validation.SeverityError {
			errs = append(errs, f)
		} else {
			warns = append(warns, f)
		}
	}
	logicErrors := buildGroup(errs, maxGroupSize)
	logicWarnings := buildGroup(warns, maxGroupSize)
	return Report{
		SyntaxErrors:  buildGroup(nil, maxGroupSize),
		LogicErrors:   &logicErrors,
		LogicWarnings: &logicWarnings,
	}
}

func buildGroup(findings []validation.Finding, maxGroupSize int) ReportGroup {
	g := ReportGroup{TotalCount: len(findings), Details: []ReportDetail{}}

	byID := map[string]int{}
	for _, f := range findings {
		switch f.Scope {
		case validation.ScopeSingleField:
			g.SingleFieldCount++
		case validation.ScopeMultiField:
			g.MultiFieldCount++
		case validation.ScopeRegister:
			g.RegisterCount++
		}

		idx, ok := byID[f.ValidationID]
		if !ok {
			idx = len(g.Details)
			byID[f.ValidationID] = idx
			g.Details = append(g.Details, ReportDetail{
				Validation: ReportValidation{
					ID:          f.ValidationID,
					Name:        f.Name,
					Description: f.Description,
					Severity:    f.Severity,
					Scope:       f.Scope,
					Link:        f.Link,
				},
				Records: []ReportRecord{},
			})
		}
		fields := f.Fields
		if fields == nil {
			fields = []validation.Field{}
		}
		g.Details[idx].Records = append(g.Details[idx].Records, ReportRecord{RecordNo: f.Row, UID: f.UID, Fields: fields})
	}

	sort.SliceStable(g.Details, func(i, j int) bool {
		return g.Details[i].Validation.ID < g.Details[j].Validation.ID
	})
	for i := range g.Details {
		recs := g.Details[i].Records
		sort.SliceStable(recs, func(a, b int) bool { return recs[a].RecordNo < recs[b].RecordNo })
		if maxGroupSize > 0 && len(recs) > maxGroupSize {
			g.Details[i].Records = recs[:maxGroupSize]
		}
	}
	return g
}

// RenderReportCSV renders findings as the downloadable report. At most
// maxErrors findings are written when maxErrors > 0.
func RenderReportCSV(findings []validation.Finding, maxErrors int) ([]byte, error) {
	if maxErrors > 0 && len(findings) > maxErrors {
		findings = findings[:maxErrors]
	}

	maxFields := 0
	for _, f := range findings {
		maxFields = max(maxFields, len(f.Fields))
	}

	header := []string{"validation_type", "validation_id", "validation_name", "row", "unique_identifier", "fig_link", "validation_description"}
	for i := 1; i <= maxFields; i++ {
		header = append(header, fmt.Sprintf("field_%d", i), fmt.Sprintf("value_%d", i))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, f := range findings {
		rec := []string{string(f.Severity), f.ValidationID, f.Name, strconv.Itoa(f.Row), f.UID, f.Link, f.Description}
		for i := 0; i < maxFields; i++ {
			if i < len(f.Fields) {
				rec = append(rec, f.Fields[i].Name, f.Fields[i].Value)
			} else {
				rec = append(rec, "", "")
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
