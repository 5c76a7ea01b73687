package pagination

// LinkKind is the kind of a linkage timeline event.
type LinkKind int

const (
	// Unlinked marks events that do not affect linkage.
	Unlinked LinkKind = iota
	// Connected adds the referenced identifier.
	Connected
	// Disconnected removes the referenced identifier.
	Disconnected
)

// LinkEvent is one entry of an ordered connect/disconnect log.
type LinkEvent struct {
	Kind LinkKind
	Ref  string
}

// LinkedSet is an insertion-ordered set of referenced identifiers.
type LinkedSet struct {
	index map[string]int
	order []string
}

// NewLinkedSet returns an empty set.
func NewLinkedSet() *LinkedSet {
	return &LinkedSet{index: make(map[string]int)}
}

// Add inserts ref if it is not present.
func (s *LinkedSet) Add(ref string) {
	if _, ok := s.index[ref]; ok {
		return
	}
	s.index[ref] = len(s.order)
	s.order = append(s.order, ref)
}

// Remove deletes ref. Removing an absent ref is a no-op.
func (s *LinkedSet) Remove(ref string) {
	i, ok := s.index[ref]
	if !ok {
		return
	}
	delete(s.index, ref)
	s.order = append(s.order[:i], s.order[i+1:]...)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
}

// Has reports membership.
func (s *LinkedSet) Has(ref string) bool {
	_, ok := s.index[ref]
	return ok
}

// Len returns the number of members.
func (s *LinkedSet) Len() int {
	return len(s.order)
}

// Members returns the members in insertion order. The result is never nil.
func (s *LinkedSet) Members() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Replay folds an ordered event log into the resulting set. Events must be
// supplied in the upstream's chronological order.
func Replay(events []LinkEvent) *LinkedSet {
	set := NewLinkedSet()
	for _, ev := range events {
		if ev.Ref == "" {
			continue
		}
		switch ev.Kind {
		case Connected:
			set.Add(ev.Ref)
		case Disconnected:
			set.Remove(ev.Ref)
		}
	}
	return set
}
