package stage

import (
	"errors"
	"fmt"
	"sort"
)

// Stage is one step of a pipeline. Order is the stage's identity for sequencing;
// ID and Label are never compared for ordering.
type Stage struct {
	ID         string `json:"id"`
	PipelineID string `json:"pipeline_id"`
	Label      string `json:"label"`
	Order      int    `json:"order"`
	IsActive   bool   `json:"is_active"`
	Color      string `json:"color,omitempty"`
}

var (
	ErrDuplicateOrder = errors.New("duplicate stage order")
	ErrDuplicateID    = errors.New("duplicate stage id")
)

// Catalog is an immutable, order-sorted view of one pipeline's stages.
// Orders are unique within a catalog; ties are rejected rather than broken.
type Catalog struct {
	pipelineID string
	stages     []Stage
	byID       map[string]int
}

func NewCatalog(pipelineID string, stages []Stage) (Catalog, error) {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	byID := make(map[string]int, len(sorted))
	for i, s := range sorted {
		if i > 0 && sorted[i-1].Order == s.Order {
			return Catalog{}, fmt.Errorf("%w: %d (%s, %s)", ErrDuplicateOrder, s.Order, sorted[i-1].ID, s.ID)
		}
		if _, dup := byID[s.ID]; dup {
			return Catalog{}, fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
		}
		byID[s.ID] = i
	}

	return Catalog{pipelineID: pipelineID, stages: sorted, byID: byID}, nil
}

func (c Catalog) PipelineID() string { return c.pipelineID }

func (c Catalog) Len() int { return len(c.stages) }

// Lookup resolves a stage by id, inactive stages included.
func (c Catalog) Lookup(id string) (Stage, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Stage{}, false
	}
	return c.stages[i], true
}

// Stages returns every stage ascending by order.
func (c Catalog) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Selectable returns the active stages ascending by order: the valid transition targets.
func (c Catalog) Selectable() []Stage {
	out := make([]Stage, 0, len(c.stages))
	for _, s := range c.stages {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}
