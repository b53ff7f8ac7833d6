package loader

import "testing"

func TestIsPDF(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"%PDF-1.4\n...", true},
		{"%PDF", false},
		{"hello", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPDF([]byte(tt.in)); got != tt.want {
			t.Errorf("IsPDF(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
