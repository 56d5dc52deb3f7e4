// Package domain contains core domain types for the logo workflow.
package domain

// Phase identifies one stage of the generation workflow.
type Phase string

const (
	PhaseDiscovery  Phase = "discovery"
	PhaseResearch   Phase = "research"
	PhaseConcept    Phase = "concept"
	PhaseRefinement Phase = "refinement"
	PhaseExport     Phase = "export"
)

var phaseOrder = []Phase{
	PhaseDiscovery,
	PhaseResearch,
	PhaseConcept,
	PhaseRefinement,
	PhaseExport,
}

// Phases returns every phase in workflow order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Index returns the ordinal position of the phase, or -1 if unknown.
func (p Phase) Index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	return p.Index() >= 0
}

// IsTerminal reports whether the phase has no outbound transitions.
func (p Phase) IsTerminal() bool {
	return p == PhaseExport
}

func (p Phase) String() string {
	return string(p)
}

// IterationCounts tracks how many iterations each phase has consumed.
type IterationCounts map[Phase]int

// Clone returns an independent copy.
func (c IterationCounts) Clone() IterationCounts {
	out := make(IterationCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
