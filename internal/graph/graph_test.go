package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCycles(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		want  [][]string
	}{
		{
			name:  "acyclic",
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}},
		},
		{
			name:  "two nodes",
			edges: [][2]string{{"a", "b"}, {"b", "a"}},
			want:  [][]string{{"a", "b", "a"}},
		},
		{
			name:  "self import",
			edges: [][2]string{{"a", "a"}, {"b", "a"}},
			want:  [][]string{{"a", "a"}},
		},
		{
			name:  "two components",
			edges: [][2]string{{"x", "y"}, {"y", "z"}, {"z", "x"}, {"p", "q"}, {"q", "p"}, {"x", "p"}},
			want:  [][]string{{"x", "y", "z", "x"}, {"p", "q", "p"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			if diff := cmp.Diff(tt.want, g.Cycles()); diff != "" {
				t.Errorf("cycles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTopoOrder(t *testing.T) {
	g := New()
	g.AddNode("main")
	g.AddEdge("main", "lib")
	g.AddEdge("lib", "base")
	g.AddEdge("main", "base")
	g.AddEdge("main", "base")

	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("TopoOrder: %v", err)
	}
	if diff := cmp.Diff([]string{"base", "lib", "main"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lib", "base"}, g.Deps("main")); diff != "" {
		t.Errorf("deps mismatch (-want +got):\n%s", diff)
	}

	g.AddEdge("base", "main")
	if _, err := g.TopoOrder(); err == nil {
		t.Error("expected cycle error")
	}
	if !g.InCycle("lib") {
		t.Error("lib should be on a cycle")
	}
	if g.Has("missing") || g.Deps("missing") != nil {
		t.Error("unknown node reported")
	}
}
