// Package validator is the safety gate between model output and the lab
// database. A candidate statement moves through a fixed pipeline of checks;
// the first failing check rejects it with a reason from a closed taxonomy.
// A rejection is terminal: the validator never rewrites a rejected statement
// into something "safer".
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/metrics"
)

// RejectionReason identifies why a candidate was rejected.
type RejectionReason string

const (
	ReasonUnsupportedStatementType RejectionReason = "UnsupportedStatementType"
	ReasonTableNotWhitelisted      RejectionReason = "TableNotWhitelisted"
	ReasonMultiStatementRejected   RejectionReason = "MultiStatementRejected"
	ReasonBlockedPattern           RejectionReason = "BlockedPattern"
	ReasonUnparsableSQL            RejectionReason = "UnparsableSQL"
)

// ValidatedQuery is the validator's verdict on one candidate statement.
// When accepted, SQL holds the final statement with the row limit applied.
type ValidatedQuery struct {
	SQL      string          `json:"sql"`
	Accepted bool            `json:"accepted"`
	Reason   RejectionReason `json:"reason,omitempty"`
	Detail   string          `json:"detail,omitempty"`
	Tables   []string        `json:"tables,omitempty"`
}

// Config bounds validation behavior.
type Config struct {
	DefaultLimit     int
	MaxLimit         int
	MaxUnionBranches int
}

// Validator checks candidate statements against a table whitelist.
type Validator struct {
	config Config
	logger *logging.Logger
}

// New creates a validator with the given limits.
func New(config Config, logger *logging.Logger) *Validator {
	return &Validator{config: config, logger: logger}
}

// blockedPatterns are rejected regardless of statement shape. Comment
// markers and exec-style procedures have no place in generated lab queries,
// so their presence means obfuscation rather than intent.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`--`),
	regexp.MustCompile(`/\*`),
	regexp.MustCompile(`(?i)\b(xp_cmdshell|sp_executesql)\b`),
	regexp.MustCompile(`(?i)\bexec(ute)?\s*\(`),
	regexp.MustCompile(`(?i)\binto\s+(outfile|dumpfile)\b`),
}

// Validate runs the candidate through the check pipeline. The requested
// limit overrides the default when positive; either way the configured
// maximum caps the final row limit.
func (v *Validator) Validate(candidate string, whitelist map[string]bool, requestedLimit int) ValidatedQuery {
	result := v.validate(candidate, whitelist, requestedLimit)

	verdict := "accepted"
	if !result.Accepted {
		verdict = string(result.Reason)
		v.logger.WithFields(map[string]interface{}{
			"stage":  "validate",
			"reason": result.Reason,
			"detail": result.Detail,
		}).Warn("rejected candidate SQL")
	}

	metrics.ValidationVerdicts.WithLabelValues(verdict).Inc()

	return result
}

func (v *Validator) validate(candidate string, whitelist map[string]bool, requestedLimit int) ValidatedQuery {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return reject(ReasonUnparsableSQL, "empty statement")
	}

	// Statement shape: exactly one statement, SELECT-family only. Stacked
	// statements are rejected outright, never truncated to the first one.
	pieces, err := sqlparser.SplitStatementToPieces(candidate)
	if err != nil {
		return reject(ReasonUnparsableSQL, err.Error())
	}

	if countNonEmpty(pieces) > 1 {
		return reject(ReasonMultiStatementRejected,
			fmt.Sprintf("%d statements in one candidate", countNonEmpty(pieces)))
	}

	stmt, err := sqlparser.Parse(candidate)
	if err != nil {
		return reject(ReasonUnparsableSQL, err.Error())
	}

	selectStmt, ok := stmt.(sqlparser.SelectStatement)
	if !ok {
		return reject(ReasonUnsupportedStatementType,
			fmt.Sprintf("%T is not a SELECT statement", stmt))
	}

	// Table references: everything reachable in the AST, joins and
	// subqueries included, must resolve to a whitelisted name.
	tables, badRef := extractTables(selectStmt)
	if badRef != "" {
		return reject(ReasonTableNotWhitelisted,
			fmt.Sprintf("cannot statically resolve table reference %q", badRef))
	}

	for _, table := range tables {
		if !whitelist[table] {
			return reject(ReasonTableNotWhitelisted,
				fmt.Sprintf("table %q is not whitelisted", table))
		}
	}

	// Defense in depth beyond the shape check.
	for _, pattern := range blockedPatterns {
		if pattern.MatchString(candidate) {
			return reject(ReasonBlockedPattern,
				fmt.Sprintf("matched blocked pattern %s", pattern.String()))
		}
	}

	if branches := branchCount(selectStmt); branches > v.config.MaxUnionBranches {
		return reject(ReasonBlockedPattern,
			fmt.Sprintf("%d union branches exceeds the ceiling of %d", branches, v.config.MaxUnionBranches))
	}

	finalSQL, rejected := v.applyLimit(candidate, selectStmt, requestedLimit)
	if rejected != nil {
		return *rejected
	}

	return ValidatedQuery{
		SQL:      finalSQL,
		Accepted: true,
		Tables:   tables,
	}
}

func reject(reason RejectionReason, detail string) ValidatedQuery {
	return ValidatedQuery{Reason: reason, Detail: detail}
}

func countNonEmpty(pieces []string) int {
	n := 0

	for _, piece := range pieces {
		if strings.TrimSpace(piece) != "" {
			n++
		}
	}

	return n
}

// extractTables walks the AST and collects every referenced table name,
// lowercased. A qualified name cannot be resolved against the single-schema
// whitelist and is returned as a bad reference.
func extractTables(stmt sqlparser.SelectStatement) (tables []string, badRef string) {
	seen := make(map[string]bool)

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		aliased, ok := node.(*sqlparser.AliasedTableExpr)
		if !ok {
			return true, nil
		}

		tableName, ok := aliased.Expr.(sqlparser.TableName)
		if !ok {
			// Derived tables (subquery sources) are walked on their
			// own; nothing to record here.
			return true, nil
		}

		if !tableName.Qualifier.IsEmpty() {
			badRef = tableName.Qualifier.String() + "." + tableName.Name.String()
			return false, nil
		}

		name := strings.ToLower(tableName.Name.String())
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}

		return true, nil
	}, stmt)

	return tables, badRef
}

func branchCount(stmt sqlparser.SelectStatement) int {
	switch s := stmt.(type) {
	case *sqlparser.Union:
		return branchCount(s.Left) + branchCount(s.Right)
	case *sqlparser.ParenSelect:
		return branchCount(s.Select)
	default:
		return 1
	}
}

// applyLimit injects a row limit when the statement has none and caps an
// existing one at the configured maximum. A caller's limit below the cap is
// never raised. The accepted SQL is the candidate's own text: regenerating
// the statement from the AST emits MySQL identifier quoting, which the
// Postgres lab database rejects.
func (v *Validator) applyLimit(candidate string, stmt sqlparser.SelectStatement, requestedLimit int) (string, *ValidatedQuery) {
	effective := v.config.DefaultLimit
	if requestedLimit > 0 {
		effective = requestedLimit
	}

	if effective > v.config.MaxLimit {
		effective = v.config.MaxLimit
	}

	limit := currentLimit(stmt)
	if limit == nil {
		return candidate + " LIMIT " + strconv.Itoa(effective), nil
	}

	rowcount, ok := limit.Rowcount.(*sqlparser.SQLVal)
	if !ok || rowcount.Type != sqlparser.IntVal {
		r := reject(ReasonUnparsableSQL, "row limit is not an integer literal")
		return "", &r
	}

	existing, err := strconv.Atoi(string(rowcount.Val))
	if err != nil {
		r := reject(ReasonUnparsableSQL, "row limit is not an integer literal")
		return "", &r
	}

	if existing <= v.config.MaxLimit {
		return candidate, nil
	}

	capped, ok := capLimitText(candidate, v.config.MaxLimit)
	if !ok {
		r := reject(ReasonUnparsableSQL, "cannot rewrite the row limit in place")
		return "", &r
	}

	return capped, nil
}

// limitRowcountRe captures the rowcount of a LIMIT clause, covering both
// "LIMIT n" and the "LIMIT offset, n" form.
var limitRowcountRe = regexp.MustCompile(`(?i)\blimit\s+(?:\d+\s*,\s*)?(\d+)`)

// capLimitText replaces the rowcount of the statement's outermost LIMIT
// clause, which is the last one in the text.
func capLimitText(candidate string, max int) (string, bool) {
	locs := limitRowcountRe.FindAllStringSubmatchIndex(candidate, -1)
	if len(locs) == 0 {
		return "", false
	}

	last := locs[len(locs)-1]

	return candidate[:last[2]] + strconv.Itoa(max) + candidate[last[3]:], true
}

func currentLimit(stmt sqlparser.SelectStatement) *sqlparser.Limit {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return s.Limit
	case *sqlparser.Union:
		return s.Limit
	case *sqlparser.ParenSelect:
		return currentLimit(s.Select)
	}

	return nil
}

