package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abc(t *testing.T) *Definition {
	t.Helper()
	d, err := NewDefinition("test",
		Step{Key: "a", Label: "A"},
		Step{Key: "b", Label: "B"},
		Step{Key: "c", Label: "C"},
	)
	require.NoError(t, err)
	return d
}

func TestNewDefinition_RejectsDuplicateKeys(t *testing.T) {
	_, err := NewDefinition("dup", Step{Key: "a"}, Step{Key: "a"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate step key "a"`)

	_, err = NewDefinition("empty", Step{Key: ""})
	assert.Error(t, err)

	_, err = NewDefinition("none")
	assert.Error(t, err)
}

func TestBuiltInDefinitions(t *testing.T) {
	for _, kind := range Kinds() {
		d, err := Lookup(kind)
		require.NoError(t, err)
		assert.Equal(t, 5, d.Len(), kind)
		assert.Equal(t, kind, d.Kind())
	}

	assert.Equal(t, "A_Diseño", Approval.Step(0).Key)
	assert.Equal(t, "C_ArmadoAula", Campus.Step(0).Key)
	assert.Equal(t, "D_Difusion", Dictation.Step(0).Key)

	_, err := Lookup("payroll")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestFieldsFor(t *testing.T) {
	f := FieldsFor("A_Diseño")
	assert.Equal(t, Fields{Value: "A_Diseño", User: "A_Diseño_user", Timestamp: "A_Diseño_timestamp"}, f)
}

func TestResolve_NothingDone(t *testing.T) {
	p := Resolve(abc(t), Record{})

	assert.Equal(t, 0, p.CurrentIndex)
	assert.Equal(t, []Status{StatusCurrent, StatusPending, StatusPending}, p.Statuses())
	assert.False(t, p.Complete)
}

func TestResolve_FirstDone(t *testing.T) {
	p := Resolve(abc(t), Record{"a": true})

	assert.Equal(t, 1, p.CurrentIndex)
	assert.Equal(t, []Status{StatusDone, StatusCurrent, StatusPending}, p.Statuses())
}

func TestResolve_AllDone(t *testing.T) {
	p := Resolve(abc(t), Record{"a": true, "b": true, "c": true})

	assert.Equal(t, 3, p.CurrentIndex)
	assert.True(t, p.Complete)
	assert.Equal(t, []Status{StatusDone, StatusDone, StatusDone}, p.Statuses())
}

func TestResolve_IgnoresNonBooleans(t *testing.T) {
	p := Resolve(abc(t), Record{"a": "yes", "b": 1})
	assert.Equal(t, 0, p.CurrentIndex)
}

func TestResolve_CarriesAudit(t *testing.T) {
	p := Resolve(abc(t), Record{"a": true, "a_user": "jdoe", "a_timestamp": "2024-01-01T00:00:00Z"})

	assert.Equal(t, "jdoe", p.Steps[0].User)
	assert.Equal(t, "2024-01-01T00:00:00Z", p.Steps[0].Timestamp)
	assert.Empty(t, p.Steps[1].User)
}

// Every boolean vector of length 3: CurrentIndex is the first false (or 3),
// and at most one step is current.
func TestResolve_AllVectors(t *testing.T) {
	d := abc(t)
	keys := []string{"a", "b", "c"}
	for mask := 0; mask < 8; mask++ {
		rec := Record{}
		want := 3
		for i, k := range keys {
			v := mask&(1<<i) != 0
			rec[k] = v
			if !v && want == 3 {
				want = i
			}
		}

		p := Resolve(d, rec)
		assert.Equal(t, want, p.CurrentIndex, "mask %03b", mask)

		current := 0
		for i, s := range p.Steps {
			if s.Status == StatusCurrent {
				current++
				assert.Equal(t, want, i)
			}
			assert.Equal(t, rec.Bool(keys[i]), s.Status == StatusDone)
		}
		if want == 3 {
			assert.Zero(t, current)
		} else {
			assert.Equal(t, 1, current)
		}

		assert.Equal(t, p, Resolve(d, rec), "resolve must be deterministic")
	}
}

func TestApply_OrderViolation(t *testing.T) {
	d := abc(t)
	proposed := map[string]bool{"a": true, "b": false, "c": true}

	for _, prev := range []Record{{}, {"a": true, "b": true, "c": true}} {
		diff, err := Apply(d, prev, proposed, "jdoe", time.Now())
		require.Error(t, err)
		assert.Nil(t, diff)
		assert.True(t, errors.Is(err, ErrOrderViolation))

		var ov *OrderViolationError
		require.True(t, errors.As(err, &ov))
		assert.Equal(t, "c", ov.Step.Key)
		assert.Equal(t, "B", ov.Missing.Label)
		assert.Contains(t, err.Error(), `"C"`)
	}
}

func TestApply_RejectsEveryGap(t *testing.T) {
	d := abc(t)
	keys := []string{"a", "b", "c"}
	for mask := 0; mask < 8; mask++ {
		proposed := map[string]bool{}
		gap := false
		seenFalse := false
		for i, k := range keys {
			v := mask&(1<<i) != 0
			proposed[k] = v
			if v && seenFalse {
				gap = true
			}
			if !v {
				seenFalse = true
			}
		}
		_, err := Apply(d, Record{}, proposed, "x", time.Now())
		if gap {
			assert.ErrorIs(t, err, ErrOrderViolation, "mask %03b", mask)
		} else {
			assert.NoError(t, err, "mask %03b", mask)
		}
	}
}

func TestApply_MinimalDiff(t *testing.T) {
	d := abc(t)
	prev := Record{"a": true, "b": false, "c": false, "a_user": "old", "a_timestamp": "2023-01-01T00:00:00Z"}
	proposed := map[string]bool{"a": true, "b": true, "c": false}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	diff, err := Apply(d, prev, proposed, "jdoe", now)
	require.NoError(t, err)

	assert.Equal(t, Diff{
		"b":           true,
		"b_user":      "jdoe",
		"b_timestamp": "2024-01-01T00:00:00Z",
	}, diff)
	assert.Equal(t, []string{"b"}, diff.ChangedSteps(d))
}

func TestApply_UncompleteAndLocalTime(t *testing.T) {
	d := abc(t)
	prev := Record{"a": true, "b": true}
	proposed := map[string]bool{"a": true, "b": false, "c": false}
	now := time.Date(2024, 1, 1, 3, 0, 0, 0, time.FixedZone("ART", -3*3600))

	diff, err := Apply(d, prev, proposed, "", now)
	require.NoError(t, err)
	assert.Equal(t, false, diff["b"])
	assert.Equal(t, "", diff["b_user"])
	assert.Equal(t, "2024-01-01T06:00:00Z", diff["b_timestamp"])
	assert.NotContains(t, diff, "a")
	assert.NotContains(t, diff, "c")
}

func TestApply_Noop(t *testing.T) {
	d := abc(t)
	diff, err := Apply(d, Record{"a": true}, map[string]bool{"a": true, "b": false, "c": false}, "jdoe", time.Now())
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestApply_InvalidProposal(t *testing.T) {
	d := abc(t)

	_, err := Apply(d, Record{}, map[string]bool{"a": true, "b": false}, "x", time.Now())
	assert.ErrorIs(t, err, ErrInvalidProposal)
	assert.Contains(t, err.Error(), `"c"`)

	_, err = Apply(d, Record{}, map[string]bool{"a": false, "b": false, "c": false, "z": true}, "x", time.Now())
	assert.ErrorIs(t, err, ErrInvalidProposal)
	assert.Contains(t, err.Error(), "z")
}

func TestProposalFromDone(t *testing.T) {
	d := abc(t)
	p, err := ProposalFromDone(d, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": false}, p)

	_, err = ProposalFromDone(d, []string{"nope"})
	assert.ErrorIs(t, err, ErrInvalidProposal)
}

func TestNewRecord(t *testing.T) {
	r := NewRecord(abc(t))
	assert.Len(t, r, 9)
	assert.Equal(t, false, r["a"])
	assert.Equal(t, "", r["a_user"])
	assert.Equal(t, "", r["c_timestamp"])
	assert.Equal(t, 0, Resolve(abc(t), r).CurrentIndex)
}
