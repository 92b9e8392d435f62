package dataset

import "crisprcore/pkg/domain"

// Unify attaches class labels from the classification lookup to the locus
// elements by sequence identity. Rows without a classification keep a nil
// label; the row count never changes.
func Unify(elements []domain.UnifiedElement, cls Classification) []domain.UnifiedElement {
	out := make([]domain.UnifiedElement, len(elements))
	for i, el := range elements {
		if label, ok := cls.Label(el.SequenceID); ok {
			el.ClassLabel = domain.StringPtr(label)
		} else {
			el.ClassLabel = nil
		}
		out[i] = el
	}
	return out
}

// Dataset is the output of Build: the unified elements plus the intermediate
// views and statistics gathered on the way.
type Dataset struct {
	Classification Classification
	Elements       []domain.UnifiedElement
	Diagnostics    []domain.Diagnostic
	Stages         []StageCount
}

// Build runs the merger, the locus builder and the unification over one
// table snapshot.
func Build(t domain.Tables) Dataset {
	cls := MergeClassifications(t.Classifications, t.SequenceStrains)
	locus := BuildLocusDataset(t)
	elements := Unify(locus.Elements, cls)
	stages := append(locus.Stages,
		StageCount{StageClassified, len(cls)},
		StageCount{StageUnified, len(elements)},
	)
	return Dataset{
		Classification: cls,
		Elements:       elements,
		Diagnostics:    locus.Diagnostics,
		Stages:         stages,
	}
}
