// Package reconcile matches the nodes of consecutive layout passes by stable
// id and describes how each one should move between them.
//
// It produces data only. Rendering the transitions, and timing them, is the
// job of pkg/render.
package reconcile

import (
	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

// Phase classifies an element across two passes.
type Phase uint8

const (
	Update Phase = iota
	Enter
	Exit
)

func (p Phase) String() string {
	switch p {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "update"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Sets is the keyed partition of two id lists. The three sets are disjoint;
// Enter and Update follow the order of cur, Exit the order of prev.
type Sets struct {
	Enter  []hierarchy.ID
	Update []hierarchy.ID
	Exit   []hierarchy.ID
}

// Diff splits prev and cur into entering, updating and exiting ids. Both
// lists are expected to hold unique ids; repeats in cur are ignored.
func Diff(prev, cur []hierarchy.ID) Sets {
	inPrev := make(map[hierarchy.ID]struct{}, len(prev))
	for _, id := range prev {
		inPrev[id] = struct{}{}
	}
	inCur := make(map[hierarchy.ID]struct{}, len(cur))

	var s Sets
	for _, id := range cur {
		if _, dup := inCur[id]; dup {
			continue
		}
		inCur[id] = struct{}{}
		if _, ok := inPrev[id]; ok {
			s.Update = append(s.Update, id)
		} else {
			s.Enter = append(s.Enter, id)
		}
	}
	for _, id := range prev {
		if _, ok := inCur[id]; !ok {
			s.Exit = append(s.Exit, id)
		}
	}
	return s
}
