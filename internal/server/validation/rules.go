package validation

import (
	"fmt"
	"strings"
)

// RuleInfo describes a rule. Every finding of the rule copies these fields.
type RuleInfo struct {
	ID          string
	Name        string
	Description string
	Severity    Severity
	Scope       Scope
	Phase       Phase
	Link        string
	// Fields names the columns echoed back in findings.
	Fields []string
}

// Row is one data record. Number is 1-based and excludes the header.
type Row struct {
	Number int
	UID    string
	Values map[string]string
}

// Rule checks rows. Register-scoped rules receive every row of the file in
// one call; other rules receive one batch at a time.
type Rule interface {
	Info() RuleInfo
	Check(vctx Context, rows []Row) []Finding
}

// NewFinding builds a finding for row from the rule's description.
func NewFinding(info RuleInfo, row Row) Finding {
	f := Finding{
		ValidationID: info.ID,
		Name:         info.Name,
		Description:  info.Description,
		Severity:     info.Severity,
		Scope:        info.Scope,
		Link:         info.Link,
		Row:          row.Number,
		UID:          row.UID,
	}
	for _, name := range info.Fields {
		f.Fields = append(f.Fields, Field{Name: name, Value: row.Values[name]})
	}
	return f
}

// RuleFunc adapts a per-row predicate into a Rule.
type RuleFunc struct {
	RuleInfo
	// Fails reports whether row violates the rule.
	Fails func(vctx Context, row Row) bool
}

func (r RuleFunc) Info() RuleInfo { return r.RuleInfo }

func (r RuleFunc) Check(vctx Context, rows []Row) []Finding {
	var out []Finding
	for _, row := range rows {
		if r.Fails(vctx, row) {
			out = append(out, NewFinding(r.RuleInfo, row))
		}
	}
	return out
}

// UniqueUID flags every record whose uid appears more than once in the file.
type UniqueUID struct{}

func (UniqueUID) Info() RuleInfo {
	return RuleInfo{
		ID:          "E3000",
		Name:        "uid.duplicates_in_dataset",
		Description: "Any 'unique identifier' (uid) must be unique within the register.",
		Severity:    SeverityError,
		Scope:       ScopeRegister,
		Phase:       PhaseLogical,
		Fields:      []string{UIDColumn},
	}
}

func (u UniqueUID) Check(_ Context, rows []Row) []Finding {
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.UID != "" {
			seen[row.UID]++
		}
	}
	var out []Finding
	for _, row := range rows {
		if seen[row.UID] > 1 {
			out = append(out, NewFinding(u.Info(), row))
		}
	}
	return out
}

// UIDColumn is the record identifier column every submission must carry.
const UIDColumn = "uid"

const maxUIDLength = 45

// DefaultRules returns the structural rules shipped with the service.
func DefaultRules() []Rule {
	return []Rule{
		RuleFunc{
			RuleInfo: RuleInfo{
				ID:          "E0001",
				Name:        "uid.invalid_text_length",
				Description: fmt.Sprintf("'Unique identifier' must be at least 1 and at most %d characters in length.", maxUIDLength),
				Severity:    SeverityError,
				Scope:       ScopeSingleField,
				Phase:       PhaseSyntactical,
				Fields:      []string{UIDColumn},
			},
			Fails: func(_ Context, row Row) bool {
				return row.UID == "" || len(row.UID) > maxUIDLength
			},
		},
		UniqueUID{},
		RuleFunc{
			RuleInfo: RuleInfo{
				ID:          "W0003",
				Name:        "uid.invalid_uid_lei",
				Description: "The first 20 characters of the 'unique identifier' should match the LEI of the financial institution.",
				Severity:    SeverityWarning,
				Scope:       ScopeSingleField,
				Phase:       PhaseLogical,
				Fields:      []string{UIDColumn},
			},
			Fails: func(vctx Context, row Row) bool {
				return vctx.LEI != "" && !strings.HasPrefix(row.UID, vctx.LEI)
			},
		},
	}
}
