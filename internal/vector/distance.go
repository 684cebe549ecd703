package vector

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero vectors score 0 so they rank last.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Scored pairs a similarity score with its insertion sequence for ranking.
type Scored[T any] struct {
	Item  T
	Score float64
	Seq   int64
}

// TopK keeps the k best items by descending score, ties by ascending sequence.
type TopK[T any] struct {
	k     int
	items []Scored[T]
}

// NewTopK creates a collector for the k best items.
func NewTopK[T any](k int) *TopK[T] {
	return &TopK[T]{k: k, items: make([]Scored[T], 0, k+1)}
}

func better[T any](a, b Scored[T]) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Seq < b.Seq
}

// Push offers an item; it is kept only if it ranks within the best k.
func (t *TopK[T]) Push(s Scored[T]) {
	if t.k <= 0 {
		return
	}
	if len(t.items) == t.k && !better(s, t.items[len(t.items)-1]) {
		return
	}
	i := len(t.items)
	for i > 0 && better(s, t.items[i-1]) {
		i--
	}
	t.items = append(t.items, Scored[T]{})
	copy(t.items[i+1:], t.items[i:])
	t.items[i] = s
	if len(t.items) > t.k {
		t.items = t.items[:t.k]
	}
}

// Results returns the kept items in rank order.
func (t *TopK[T]) Results() []Scored[T] {
	return t.items
}
