package workflow

// Record is a stored step record: step keys map to booleans, audit fields to
// strings. Other keys (e.g. the owning entity's attributes) are ignored.
type Record map[string]any

// Bool reports whether the step key is complete. Absent and non-boolean
// values are false.
func (r Record) Bool(key string) bool {
	v, _ := r[key].(bool)
	return v
}

func (r Record) str(key string) string {
	v, _ := r[key].(string)
	return v
}

// Status is the derived state of one step.
type Status string

const (
	StatusDone    Status = "done"
	StatusCurrent Status = "current"
	StatusPending Status = "pending"
)

// StepView is a render-ready step.
type StepView struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Done      bool   `json:"done"`
	Status    Status `json:"status"`
	User      string `json:"user,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Progress is the resolved view of a record under a definition.
type Progress struct {
	Kind         Kind       `json:"kind"`
	Steps        []StepView `json:"steps"`
	CurrentIndex int        `json:"current_index"`
	Complete     bool       `json:"complete"`
}

// Statuses returns the per-step statuses in order.
func (p Progress) Statuses() []Status {
	out := make([]Status, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Status
	}
	return out
}

// Resolve derives per-step status and the current index. CurrentIndex is the
// first incomplete ordinal, or the number of steps when all are complete.
// The current step is never stored; it is recomputed from the booleans.
func Resolve(def *Definition, record Record) Progress {
	steps := make([]StepView, def.Len())
	current := def.Len()
	for i, s := range def.steps {
		done := record.Bool(s.Key)
		if !done && current == def.Len() {
			current = i
		}
		f := FieldsFor(s.Key)
		steps[i] = StepView{
			Key:       s.Key,
			Label:     s.Label,
			Done:      done,
			User:      record.str(f.User),
			Timestamp: record.str(f.Timestamp),
		}
	}

	for i := range steps {
		switch {
		case steps[i].Done:
			steps[i].Status = StatusDone
		case i == current:
			steps[i].Status = StatusCurrent
		default:
			steps[i].Status = StatusPending
		}
	}

	return Progress{
		Kind:         def.kind,
		Steps:        steps,
		CurrentIndex: current,
		Complete:     current == def.Len(),
	}
}
