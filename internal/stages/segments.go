package stages

import (
	"fmt"
	"strings"
)

// SegmentRule is one row of the segment decision table: inclusive score
// bounds and the label assigned when they hold. Rules are evaluated in order,
// first match wins.
type SegmentRule struct {
	Label string
	MinR  int
	MaxR  int
	MinF  int
	MaxF  int
}

// SegmentRules is the business rule set. The thresholds encode marketing
// intent and must not be rederived; change them only with the owners of the
// segment definitions.
var SegmentRules = []SegmentRule{
	{Label: "Champions", MinR: 4, MaxR: 5, MinF: 4, MaxF: 5},
	{Label: "Loyal Customers", MinR: 3, MaxR: 5, MinF: 3, MaxF: 5},
	{Label: "New Customers", MinR: 4, MaxR: 5, MinF: 1, MaxF: 1},
	{Label: "Promising", MinR: 3, MaxR: 5, MinF: 1, MaxF: 1},
	{Label: "Need Attention", MinR: 2, MaxR: 2, MinF: 2, MaxF: 5},
	{Label: "Cant Lose Them", MinR: 1, MaxR: 1, MinF: 4, MaxF: 5},
	{Label: "Hibernating", MinR: 1, MaxR: 1, MinF: 1, MaxF: 2},
}

// DefaultSegment is the residual bucket for buyers no rule matches.
const DefaultSegment = "At Risk"

// BrowserSegment is the sentinel consumers assign to users absent from the
// RFM table (no purchases).
const BrowserSegment = "Browser"

func (r SegmentRule) Matches(rScore, fScore int) bool {
	return rScore >= r.MinR && rScore <= r.MaxR && fScore >= r.MinF && fScore <= r.MaxF
}

// SegmentFor assigns a label for a buyer's recency and frequency scores.
func SegmentFor(rScore, fScore int) string {
	for _, rule := range SegmentRules {
		if rule.Matches(rScore, fScore) {
			return rule.Label
		}
	}
	return DefaultSegment
}

// segmentCaseSQL renders the decision table as a CASE ladder so the SQL path
// and SegmentFor always agree.
func segmentCaseSQL() string {
	var sb strings.Builder
	sb.WriteString("CASE")
	for _, rule := range SegmentRules {
		fmt.Fprintf(&sb, " WHEN r_score BETWEEN %d AND %d AND f_score BETWEEN %d AND %d THEN '%s'",
			rule.MinR, rule.MaxR, rule.MinF, rule.MaxF, rule.Label)
	}
	fmt.Fprintf(&sb, " ELSE '%s' END", DefaultSegment)
	return sb.String()
}
