package party

import (
	"fmt"
)

// Vector holds exactly one value per party ordinal of a session.
// Ordinals are 1-based; the value for ordinal k lives at index k-1.
type Vector[T any] struct {
	items []T
	set   []bool
}

// NewVector creates an empty vector for n parties.
func NewVector[T any](n uint16) *Vector[T] {
	return &Vector[T]{
		items: make([]T, n),
		set:   make([]bool, n),
	}
}

// Assemble builds a vector from the caller's own contribution and the values
// collected from its peers in ascending ordinal order with self skipped.
func Assemble[T any](self, n uint16, own T, others []T) (*Vector[T], error) {
	if int(n) != len(others)+1 {
		return nil, fmt.Errorf("expected %d peer values, got %d", n-1, len(others))
	}
	v := NewVector[T](n)
	if err := v.Set(self, own); err != nil {
		return nil, err
	}
	for i, ordinal := range Peers(self, n) {
		if err := v.Set(ordinal, others[i]); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Set stores the value of one ordinal. Each ordinal may be set only once.
func (v *Vector[T]) Set(ordinal uint16, item T) error {
	if ordinal < 1 || int(ordinal) > len(v.items) {
		return fmt.Errorf("ordinal %d out of range 1..%d", ordinal, len(v.items))
	}
	if v.set[ordinal-1] {
		return fmt.Errorf("ordinal %d already set", ordinal)
	}
	v.items[ordinal-1] = item
	v.set[ordinal-1] = true
	return nil
}

// Get returns the value stored for ordinal, or the zero value if unset.
func (v *Vector[T]) Get(ordinal uint16) T {
	var zero T
	if ordinal < 1 || int(ordinal) > len(v.items) {
		return zero
	}
	return v.items[ordinal-1]
}

// Len is the number of parties the vector was created for.
func (v *Vector[T]) Len() int { return len(v.items) }

// Complete reports whether every ordinal has a value.
func (v *Vector[T]) Complete() bool {
	for _, ok := range v.set {
		if !ok {
			return false
		}
	}
	return true
}

// Slice returns the values in ordinal order.
func (v *Vector[T]) Slice() []T {
	out := make([]T, len(v.items))
	copy(out, v.items)
	return out
}

// Each calls fn for every ordinal in ascending order and stops at the first error.
func (v *Vector[T]) Each(fn func(ordinal uint16, item T) error) error {
	for i, item := range v.items {
		if err := fn(uint16(i+1), item); err != nil {
			return err
		}
	}
	return nil
}

// Map converts every value of a vector, keeping ordinals.
func Map[T, U any](v *Vector[T], fn func(ordinal uint16, item T) (U, error)) (*Vector[U], error) {
	out := NewVector[U](uint16(v.Len()))
	err := v.Each(func(ordinal uint16, item T) error {
		u, err := fn(ordinal, item)
		if err != nil {
			return err
		}
		return out.Set(ordinal, u)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Peers lists the ordinals 1..n without self, ascending.
func Peers(self, n uint16) []uint16 {
	peers := make([]uint16, 0, n)
	for i := uint16(1); i <= n; i++ {
		if i != self {
			peers = append(peers, i)
		}
	}
	return peers
}
