package memory

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/scilab-ai/scilab/backend/pkg/common"
)

func sampleChunks() []common.Chunk {
	return []common.Chunk{
		{
			ID: "c1",
			Entities: []common.Entity{
				{Name: "Transformer", Type: "Concept", Description: "self attention architecture"},
				{Name: "Attention Paper", Type: "Paper", Description: "introduces the transformer"},
			},
			Relations: []common.Relation{
				{Source: "Attention Paper", Target: "Transformer", Label: "mentions", Description: "first"},
			},
		},
		{
			ID: "c2",
			Relations: []common.Relation{
				{Source: "Attention Paper", Target: "Transformer", Label: "mentions", Description: "second"},
				{Source: "Claim One", Target: "Evidence One", Label: "supported_by", Description: "proof"},
			},
		},
	}
}

func TestSaveChunks_UpsertsRelations(t *testing.T) {
	s := NewGraphMemoryStorage()
	ctx := context.Background()
	if err := s.SaveChunks(ctx, sampleChunks()); err != nil {
		t.Fatalf("SaveChunks() error = %v", err)
	}

	triplets, err := s.GetTriplets(ctx)
	if err != nil {
		t.Fatalf("GetTriplets() error = %v", err)
	}
	if len(triplets) != 2 {
		t.Fatalf("got %d triplets, want 2", len(triplets))
	}
	if triplets[0].Relation.Description != "second" {
		t.Errorf("relation description = %q, want last write", triplets[0].Relation.Description)
	}
	if triplets[0].Source.Type != "Paper" || triplets[0].Target.Description != "self attention architecture" {
		t.Errorf("endpoints not resolved: %+v", triplets[0])
	}
	if triplets[1].Source.Name != "Claim One" {
		t.Errorf("bare endpoint entity missing: %+v", triplets[1])
	}

	// a bare re-mention must not erase the typed entity
	if err := s.SaveChunks(ctx, []common.Chunk{{ID: "c3", Relations: []common.Relation{
		{Source: "Transformer", Target: "RNN", Label: "related_to"},
	}}}); err != nil {
		t.Fatalf("SaveChunks() error = %v", err)
	}
	triplets, _ = s.GetTriplets(ctx)
	if triplets[2].Source.Type != "Concept" {
		t.Errorf("entity type lost after bare mention: %+v", triplets[2].Source)
	}
	if n, _ := s.CountTriplets(ctx); n != 3 {
		t.Errorf("CountTriplets() = %d, want 3", n)
	}
}

func TestRetrieve_ReturnsRelationLines(t *testing.T) {
	s := NewGraphMemoryStorage()
	ctx := context.Background()
	if err := s.SaveChunks(ctx, sampleChunks()); err != nil {
		t.Fatalf("SaveChunks() error = %v", err)
	}

	nodes, err := s.Retrieve(ctx, "What is the transformer?", 1)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(nodes))
	}
	if !strings.Contains(nodes[0].Text, "Attention Paper -> mentions -> Transformer") {
		t.Errorf("node text = %q", nodes[0].Text)
	}

	nodes, _ = s.Retrieve(ctx, "evidence", 5)
	if len(nodes) != 1 || nodes[0].Text != "Claim One -> supported by -> Evidence One" {
		t.Errorf("nodes = %+v", nodes)
	}

	nodes, _ = s.Retrieve(ctx, "quantum chromodynamics", 5)
	if len(nodes) != 0 {
		t.Errorf("unrelated query returned %+v", nodes)
	}
}

func TestRetrieve_QueryTerms(t *testing.T) {
	s := NewGraphMemoryStorage()
	ctx := context.Background()
	err := s.SaveChunks(ctx, []common.Chunk{{
		ID: "c1",
		Entities: []common.Entity{
			{Name: "Müller", Type: "Person", Description: "numerical analyst"},
			{Name: "Analysis Toolbox", Type: "Software", Description: "signal analysis"},
		},
		Relations: []common.Relation{
			{Source: "Müller", Target: "Analysis Toolbox", Label: "uses"},
			{Source: "Analysis Toolbox", Target: "Scilab", Label: "part_of"},
		},
	}})
	if err != nil {
		t.Fatalf("SaveChunks() error = %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"stop words do not match substrings", "Who is Müller?", []string{"Müller -> uses -> Analysis Toolbox"}},
		{"only stop words", "what is it?", nil},
		{"wildcards are literal", "100% match", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := s.Retrieve(ctx, tt.query, 5)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			var got []string
			for _, n := range nodes {
				got = append(got, n.Text)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Retrieve(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
