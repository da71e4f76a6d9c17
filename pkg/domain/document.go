package domain

// FlowDocument is the persisted aggregate: an ordered sequence of steps.
type FlowDocument struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"-"`
}

// Clone returns a deep copy of the document.
func (d FlowDocument) Clone() FlowDocument {
	out := d
	if d.Steps != nil {
		out.Steps = make([]Step, len(d.Steps))
		for i, s := range d.Steps {
			out.Steps[i] = s.Clone()
		}
	}
	return out
}

// Records flattens the steps for storage.
func (d FlowDocument) Records() []StepRecord {
	recs := make([]StepRecord, len(d.Steps))
	for i, s := range d.Steps {
		recs[i] = s.Record()
	}
	return recs
}

// StepsFromRecords converts stored records back into typed steps.
func StepsFromRecords(recs []StepRecord) ([]Step, error) {
	steps := make([]Step, 0, len(recs))
	for _, r := range recs {
		s, err := r.Step()
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}
