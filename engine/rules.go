/*
rules.go - Classification rule set for pay-line buckets

PURPOSE:
  Decides, per pay line, whether a line is regular compensation or an
  incentive (bonus-like) amount. The decision is driven purely by the
  line's description text; this step never touches money.

WHY AN ORDERED RULE SET?
  The reference behavior used two fixed keyword lists with an implicit
  fall-through to "regular". Encoding the rules as an ordered, injectable
  slice makes two things explicit and testable:
  1. Precedence: regular keywords are checked before incentive keywords,
     so "Retention Overtime" lands in regular, not incentive.
  2. The default: a line matching nothing is regular. The bias is toward
     NOT under-classifying pay as a bonus, since a misclassified bonus
     halves the payee's share of that line.

MATCHING:
  Case-insensitive substring match. A line matches exactly one bucket:
  the first rule whose keyword appears in the description wins.

SEE ALSO:
  - classifier.go: Applies a rule set to a period's line list
  - rates.go: Consumes the two buckets
*/
package engine

import "strings"

// =============================================================================
// RULES
// =============================================================================

// Bucket is the classification target of a rule.
type Bucket string

const (
	BucketRegular   Bucket = "regular"
	BucketIncentive Bucket = "incentive"
)

// Rule maps a description keyword to a bucket. Rules are evaluated in
// order; the first match decides the line.
type Rule struct {
	Keyword string
	Bucket  Bucket
}

// RegularRule and IncentiveRule build tagged rules.
func RegularRule(keyword string) Rule   { return Rule{Keyword: keyword, Bucket: BucketRegular} }
func IncentiveRule(keyword string) Rule { return Rule{Keyword: keyword, Bucket: BucketIncentive} }

// DefaultRules reproduces the production keyword lists. All regular rules
// precede all incentive rules, giving regular keywords precedence.
func DefaultRules() []Rule {
	return []Rule{
		RegularRule("regular"),
		RegularRule("overtime"),
		RegularRule("overtime premium"),
		RegularRule("education differential"),
		RegularRule("shift differential"),
		RegularRule("holiday"),
		RegularRule("vacation"),
		RegularRule("sick"),
		RegularRule("pto"),
		RegularRule("personal time"),

		IncentiveRule("bonus"),
		IncentiveRule("incentive"),
		IncentiveRule("commission"),
		IncentiveRule("retention"),
		IncentiveRule("referral"),
		IncentiveRule("award"),
		IncentiveRule("stipend"),
		IncentiveRule("gift card"),
		IncentiveRule("gift"),
	}
}

// supplementalHourKeywords identify lines whose hours duplicate hours from
// base lines (e.g. "Overtime Premium" reuses Overtime hours, a differential
// reuses all hours as a per-hour add-on). Their hours must never be summed,
// and fixed-hourly contracts skip them entirely: the fixed rate already
// prices the base labor those hours represent.
var supplementalHourKeywords = []string{
	"premium",
	"differential",
	"group term life",
	"gtl",
	"gross up",
}

// IsSupplemental reports whether a description names a supplemental-hour
// line (premium, differential, GTL, gross-up).
func IsSupplemental(description string) bool {
	desc := strings.ToLower(description)
	for _, kw := range supplementalHourKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// match returns the bucket of the first rule whose keyword appears in the
// description, or ok=false when no rule matches.
func match(rules []Rule, description string) (Bucket, bool) {
	desc := strings.ToLower(description)
	for _, rule := range rules {
		if strings.Contains(desc, strings.ToLower(rule.Keyword)) {
			return rule.Bucket, true
		}
	}
	return "", false
}
