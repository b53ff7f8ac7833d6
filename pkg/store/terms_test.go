package store

import (
	"reflect"
	"testing"
)

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"What is GraphRAG?", []string{"graphrag"}},
		{"How does Xcos relate to Scilab, and Xcos?", []string{"xcos", "relate", "scilab"}},
		{"Müller's Schrödinger paper", []string{"müller", "schrödinger", "paper"}},
		{"50% of x_y", []string{"50", "x_y"}},
		{"is a ?", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := QueryTerms(tt.query); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("QueryTerms(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"50%":     `50\%`,
		"x_y":     `x\_y`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := EscapeLike(in); got != want {
			t.Errorf("EscapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
