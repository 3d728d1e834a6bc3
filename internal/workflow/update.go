package workflow

import (
	"fmt"
	"sort"
	"time"
)

// Diff is the minimal audited partial update produced by Apply. It holds, for
// each changed step, the new value plus the editor and edit time.
type Diff map[string]any

// Empty reports the no-op outcome: nothing changed, nothing to write.
func (d Diff) Empty() bool { return len(d) == 0 }

// ChangedSteps returns the step keys present in the diff, in definition order.
func (d Diff) ChangedSteps(def *Definition) []string {
	var keys []string
	for _, s := range def.steps {
		if _, ok := d[s.Key]; ok {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// Validate checks that proposed lists exactly the definition's steps and
// that no step is complete while an earlier one is not.
func Validate(def *Definition, proposed map[string]bool) error {
	var unknown []string
	for k := range proposed {
		if def.Ordinal(k) < 0 {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown steps %v for %s", ErrInvalidProposal, unknown, def.kind)
	}
	for _, s := range def.steps {
		if _, ok := proposed[s.Key]; !ok {
			return fmt.Errorf("%w: missing step %q", ErrInvalidProposal, s.Key)
		}
	}

	firstOpen := -1
	for i, s := range def.steps {
		if !proposed[s.Key] {
			if firstOpen < 0 {
				firstOpen = i
			}
			continue
		}
		if firstOpen >= 0 {
			return &OrderViolationError{Step: s, Missing: def.steps[firstOpen]}
		}
	}
	return nil
}

// Apply validates proposed against def and computes the audited diff against
// prev. Steps whose value is unchanged are left out entirely so that their
// audit trail is preserved. An empty diff is the no-op outcome, not an error.
func Apply(def *Definition, prev Record, proposed map[string]bool, actor string, now time.Time) (Diff, error) {
	if err := Validate(def, proposed); err != nil {
		return nil, err
	}

	ts := now.UTC().Format(TimestampLayout)
	diff := Diff{}
	for _, s := range def.steps {
		next := proposed[s.Key]
		if next == prev.Bool(s.Key) {
			continue
		}
		f := FieldsFor(s.Key)
		diff[f.Value] = next
		diff[f.User] = actor
		diff[f.Timestamp] = ts
	}
	return diff, nil
}

// ProposalFromDone builds a full proposal where exactly the listed keys are
// complete.
func ProposalFromDone(def *Definition, done []string) (map[string]bool, error) {
	proposed := make(map[string]bool, def.Len())
	for _, s := range def.steps {
		proposed[s.Key] = false
	}
	for _, k := range done {
		if def.Ordinal(k) < 0 {
			return nil, fmt.Errorf("%w: unknown step %q for %s", ErrInvalidProposal, k, def.kind)
		}
		proposed[k] = true
	}
	return proposed, nil
}

// NewRecord seeds a fresh record with every step incomplete and empty audit
// fields.
func NewRecord(def *Definition) Record {
	r := make(Record, def.Len()*3)
	for _, s := range def.steps {
		f := FieldsFor(s.Key)
		r[f.Value] = false
		r[f.User] = ""
		r[f.Timestamp] = ""
	}
	return r
}
