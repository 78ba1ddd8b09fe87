package decode

import (
	"slices"
	"sort"
	"sync"
)

// stateList holds the annotations of the last decode. Decoders embed it.
type stateList struct {
	mu   sync.RWMutex
	anns []Annotation
}

func (l *stateList) set(anns []Annotation) {
	l.mu.Lock()
	l.anns = anns
	l.mu.Unlock()
}

// Annotations returns a copy of the stored annotations.
func (l *stateList) Annotations() []Annotation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.anns)
}

// SubsampledStates windows the stored annotations; see the package function.
func (l *stateList) SubsampledStates(start, end uint64, minLength float64) []Annotation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return SubsampledStates(l.anns, start, end, minLength)
}

// SubsampledStates returns the annotations of anns that intersect the sample
// range [start, end].
//
// anns must be sorted by Start and must not overlap. An annotation shorter than
// minLength samples is too narrow to draw on its own: runs of two or more such
// annotations separated by less than minLength samples are replaced by one
// StateSummary annotation covering the run, with Payload holding the number
// of merged annotations.
func SubsampledStates(anns []Annotation, start, end uint64, minLength float64) []Annotation {
	if start > end {
		return nil
	}

	i := sort.Search(len(anns), func(i int) bool {
		return anns[i].End() > start
	})

	var out []Annotation
	for i < len(anns) && anns[i].Start <= end {
		a := anns[i]
		if float64(a.Length) >= minLength {
			out = append(out, a)
			i++

			continue
		}

		j := i + 1
		runEnd := a.End()
		for j < len(anns) {
			next := anns[j]
			if next.Start > end || float64(next.Length) >= minLength || float64(next.Start-runEnd) >= minLength {
				break
			}
			runEnd = next.End()
			j++
		}

		if j-i == 1 {
			out = append(out, a)
		} else {
			out = append(out, Annotation{
				Start:   a.Start,
				Length:  runEnd - a.Start,
				State:   StateSummary,
				Payload: uint64(j - i),
			})
		}
		i = j
	}

	return out
}
