/*
classifier.go - Partitions a period's pay lines into regular and incentive

PURPOSE:
  The first stage of the earnings pipeline. Splits the extracted line list
  into the two buckets the rate engine prices differently: regular lines
  (the payee's base compensation) and incentive lines (bonus-like amounts
  shared at the incentive split percentage).

CONTRACT:
  - Every line lands in exactly one bucket (the partition is total).
  - Item order is preserved within each bucket.
  - No side effects; the input slice is never mutated.

SEE ALSO:
  - rules.go: The ordered rule set and the default-to-regular policy
*/
package engine

// Classifier partitions pay lines using an ordered rule set.
// The zero value is not usable; construct with NewClassifier.
type Classifier struct {
	rules     []Rule
	defaultTo Bucket
}

// NewClassifier builds a classifier over the given rules. Lines matching
// no rule fall into defaultTo.
func NewClassifier(rules []Rule, defaultTo Bucket) *Classifier {
	return &Classifier{rules: rules, defaultTo: defaultTo}
}

// DefaultClassifier uses the production keyword rules with the
// default-to-regular policy.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules(), BucketRegular)
}

// Classify splits lines into (regular, incentive), preserving order.
func (c *Classifier) Classify(lines []PayLine) (regular, incentive []PayLine) {
	for _, line := range lines {
		bucket, ok := match(c.rules, line.Description)
		if !ok {
			bucket = c.defaultTo
		}
		if bucket == BucketIncentive {
			incentive = append(incentive, line)
		} else {
			regular = append(regular, line)
		}
	}
	return regular, incentive
}
