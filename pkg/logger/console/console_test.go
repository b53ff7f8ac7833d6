package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{"info level hides debug", false, false},
		{"debug level shows debug", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Options{Debug: tt.debug, Prefix: "worker", Output: &buf})

			l.Debug("[Queue] Received job", "document", "doc-1")
			l.Info("[Graph] Ingested", "chunks", 3)

			out := buf.String()
			if got := strings.Contains(out, "Received job"); got != tt.wantDebug {
				t.Errorf("debug line present = %v, want %v:\n%s", got, tt.wantDebug, out)
			}
			if !strings.Contains(out, "Ingested") || !strings.Contains(out, "chunks=3") {
				t.Errorf("info line missing:\n%s", out)
			}
			if !strings.Contains(out, "worker") {
				t.Errorf("prefix missing:\n%s", out)
			}
		})
	}
}
