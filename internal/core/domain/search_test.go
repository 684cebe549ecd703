package domain

import (
	"errors"
	"testing"
)

func TestNewFilterBuilder(t *testing.T) {
	b, err := NewFilterBuilder(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := b.AllowedKeys()
	want := []string{"chapter", "class", "filename", "subject"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("expected %v, got %v", want, keys)
		}
	}

	if _, err := NewFilterBuilder([]string{"class", "bad key'"}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestFilterBuilder_Build(t *testing.T) {
	b, _ := NewFilterBuilder(DefaultTagKeys)

	tests := []struct {
		name      string
		filters   map[string]string
		wantTerms int
		wantErr   error
	}{
		{"nil", nil, 0, nil},
		{"all blank", map[string]string{"class": "", "subject": "  "}, 0, nil},
		{"one", map[string]string{"class": "Class 10"}, 1, nil},
		{"mixed", map[string]string{"class": "Class 10", "subject": "Science", "chapter": ""}, 2, nil},
		{"unknown key", map[string]string{"author": "x"}, 0, ErrInvalidInput},
		{"unknown key with blank value", map[string]string{"author": "", "class": "Class 10"}, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := b.Build(tt.filters)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(f.Terms()) != tt.wantTerms {
				t.Errorf("expected %d terms, got %d", tt.wantTerms, len(f.Terms()))
			}
			if f.IsEmpty() != (tt.wantTerms == 0) {
				t.Errorf("IsEmpty() = %v", f.IsEmpty())
			}
		})
	}
}

func TestFilterBuilder_Build_BlankValuesOutsideAllowedKeys(t *testing.T) {
	b, err := NewFilterBuilder([]string{"subject"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Shape of a /query request that leaves class and chapter empty
	f, err := b.Build(map[string]string{"class": "", "subject": "Geo", "chapter": " "})
	if err != nil {
		t.Fatalf("expected blank filters ignored, got %v", err)
	}
	if terms := f.Terms(); len(terms) != 1 || terms[0].Key != "subject" {
		t.Errorf("expected only the subject term, got %v", terms)
	}

	if _, err := b.Build(map[string]string{"class": "Class 8"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a set key outside the allowed set, got %v", err)
	}
}

func TestFilterPredicate_TermsSorted(t *testing.T) {
	f := MustFilter(map[string]string{"subject": "Science", "class": "Class 10", "chapter": "Chapter 1"})
	terms := f.Terms()
	if terms[0].Key != "chapter" || terms[1].Key != "class" || terms[2].Key != "subject" {
		t.Errorf("terms not sorted: %+v", terms)
	}
	if f.String() != `chapter="Chapter 1" AND class="Class 10" AND subject="Science"` {
		t.Errorf("unexpected String(): %s", f.String())
	}
}

func TestFilterPredicate_Matches(t *testing.T) {
	tags := Tags{"class": "Class 10", "subject": "Science", "chapter": "Chapter 1"}

	tests := []struct {
		name   string
		filter FilterPredicate
		want   bool
	}{
		{"empty matches all", FilterPredicate{}, true},
		{"single match", MustFilter(map[string]string{"class": "Class 10"}), true},
		{"conjunction match", MustFilter(map[string]string{"class": "Class 10", "subject": "Science"}), true},
		{"value mismatch", MustFilter(map[string]string{"class": "Class 9"}), false},
		{"partial mismatch", MustFilter(map[string]string{"class": "Class 10", "subject": "Math"}), false},
		{"missing key", MustFilter(map[string]string{"filename": "x.pdf"}), false},
		{"case sensitive", MustFilter(map[string]string{"subject": "science"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tags); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	if !(FilterPredicate{}).Matches(nil) {
		t.Error("empty predicate should match nil tags")
	}
}

func TestFilterPredicate_Terms_ReturnsCopy(t *testing.T) {
	f := MustFilter(map[string]string{"class": "Class 10"})
	terms := f.Terms()
	terms[0].Value = "mutated"
	if f.AsMap()["class"] != "Class 10" {
		t.Error("Terms() should not expose internal state")
	}
}

func TestRetrievalResult_Texts(t *testing.T) {
	r := &RetrievalResult{Passages: []Passage{{Text: "a"}, {Text: "b"}}}
	texts := r.Texts()
	if len(texts) != 2 || texts[0] != "a" || texts[1] != "b" {
		t.Errorf("unexpected texts: %v", texts)
	}
}
