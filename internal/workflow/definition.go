// Package workflow models sequential-step workflows: an ordered list of
// boolean milestones, the derivation of the current step, and the audited
// partial-update protocol used to change them.
package workflow

import (
	"fmt"
)

// Kind identifies a workflow definition.
type Kind string

const (
	KindApproval  Kind = "approval"
	KindCampus    Kind = "campus"
	KindDictation Kind = "dictation"
)

// Step is one named boolean milestone.
type Step struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Definition is an ordered, immutable list of steps. The order is the
// required completion sequence.
type Definition struct {
	kind  Kind
	steps []Step
	index map[string]int
}

// NewDefinition builds a definition, rejecting empty or duplicate keys.
func NewDefinition(kind Kind, steps ...Step) (*Definition, error) {
	if kind == "" {
		return nil, fmt.Errorf("workflow kind is required")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow %q has no steps", kind)
	}

	d := &Definition{
		kind:  kind,
		steps: make([]Step, len(steps)),
		index: make(map[string]int, len(steps)),
	}
	for i, s := range steps {
		if s.Key == "" {
			return nil, fmt.Errorf("workflow %q: step %d has an empty key", kind, i)
		}
		if _, dup := d.index[s.Key]; dup {
			return nil, fmt.Errorf("workflow %q: duplicate step key %q", kind, s.Key)
		}
		d.steps[i] = s
		d.index[s.Key] = i
	}
	return d, nil
}

// MustDefinition is like NewDefinition but panics on error. Use it only for
// package-level definitions.
func MustDefinition(kind Kind, steps ...Step) *Definition {
	d, err := NewDefinition(kind, steps...)
	if err != nil {
		panic(err)
	}
	return d
}

// Kind returns the workflow kind.
func (d *Definition) Kind() Kind { return d.kind }

// Len returns the number of steps.
func (d *Definition) Len() int { return len(d.steps) }

// Steps returns a copy of the ordered steps.
func (d *Definition) Steps() []Step {
	out := make([]Step, len(d.steps))
	copy(out, d.steps)
	return out
}

// Step returns the step at ordinal i.
func (d *Definition) Step(i int) Step { return d.steps[i] }

// Ordinal returns the position of key, or -1 if the key is not a step.
func (d *Definition) Ordinal(key string) int {
	if i, ok := d.index[key]; ok {
		return i
	}
	return -1
}

var (
	Approval = MustDefinition(KindApproval,
		Step{Key: "A_Diseño", Label: "Diseño"},
		Step{Key: "A_AutorizacionINAP", Label: "Autorización INAP"},
		Step{Key: "A_CargaSAI", Label: "Carga SAI"},
		Step{Key: "A_TramitacionExpediente", Label: "Tramitación Expediente"},
		Step{Key: "A_DictamenINAP", Label: "Dictamen INAP"},
	)

	Campus = MustDefinition(KindCampus,
		Step{Key: "C_ArmadoAula", Label: "Armado de aula"},
		Step{Key: "C_CargaContenidos", Label: "Carga de contenidos"},
		Step{Key: "C_AltaDocentes", Label: "Alta de docentes"},
		Step{Key: "C_Matriculacion", Label: "Matriculación"},
		Step{Key: "C_AulaHabilitada", Label: "Aula habilitada"},
	)

	Dictation = MustDefinition(KindDictation,
		Step{Key: "D_Difusion", Label: "Difusión"},
		Step{Key: "D_Inscripcion", Label: "Inscripción"},
		Step{Key: "D_Dictado", Label: "Dictado"},
		Step{Key: "D_Evaluacion", Label: "Evaluación"},
		Step{Key: "D_Certificacion", Label: "Certificación"},
	)

	registry = map[Kind]*Definition{
		KindApproval:  Approval,
		KindCampus:    Campus,
		KindDictation: Dictation,
	}
)

// Lookup returns the definition registered for kind.
func Lookup(kind Kind) (*Definition, error) {
	d, ok := registry[kind]
	if !ok {
		return nil, &UnknownKindError{Kind: string(kind)}
	}
	return d, nil
}

// Kinds lists the registered kinds in display order.
func Kinds() []Kind {
	return []Kind{KindApproval, KindCampus, KindDictation}
}
