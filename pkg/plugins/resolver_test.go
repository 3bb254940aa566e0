package plugins

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolveOrder_Chain(t *testing.T) {
	// feed -> profile -> core
	deps := map[string][]string{
		"feed":    {"profile"},
		"profile": {"core"},
		"core":    nil,
	}

	order, err := ResolveOrder([]string{"feed", "profile", "core"}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"core", "profile", "feed"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected order %v, got %v", expected, order)
	}
}

func TestResolveOrder_Diamond(t *testing.T) {
	deps := map[string][]string{
		"app":     {"left", "right"},
		"left":    {"base"},
		"right":   {"base"},
		"base":    nil,
		"unused":  nil,
		"another": {"unused"},
	}
	ids := []string{"app", "left", "right", "base", "unused", "another"}

	order, err := ResolveOrder(ids, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != len(ids) {
		t.Fatalf("Expected %d plugins, got %d", len(ids), len(order))
	}

	position := make(map[string]int)
	for i, id := range order {
		if _, dup := position[id]; dup {
			t.Fatalf("Plugin %s appears twice in %v", id, order)
		}
		position[id] = i
	}
	for id, ds := range deps {
		for _, dep := range ds {
			if position[dep] > position[id] {
				t.Errorf("Expected %s before %s in %v", dep, id, order)
			}
		}
	}

	// traversal is deterministic
	expected := []string{"base", "left", "right", "app", "unused", "another"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected order %v, got %v", expected, order)
	}
}

func TestResolveOrder_Cycle(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		deps     map[string][]string
		expected []string
	}{
		{
			name:     "two plugins",
			ids:      []string{"a", "b"},
			deps:     map[string][]string{"a": {"b"}, "b": {"a"}},
			expected: []string{"a", "b", "a"},
		},
		{
			name:     "three plugins",
			ids:      []string{"a", "b", "c"},
			deps:     map[string][]string{"a": {"b"}, "b": {"c"}, "c": {"a"}},
			expected: []string{"a", "b", "c", "a"},
		},
		{
			name:     "cycle behind a prefix",
			ids:      []string{"root"},
			deps:     map[string][]string{"root": {"x"}, "x": {"y"}, "y": {"x"}},
			expected: []string{"x", "y", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := ResolveOrder(tt.ids, tt.deps)
			if order != nil {
				t.Errorf("Expected no order, got %v", order)
			}

			var cycle *CircularDependencyError
			if !errors.As(err, &cycle) {
				t.Fatalf("Expected CircularDependencyError, got %v", err)
			}
			if !reflect.DeepEqual(cycle.Cycle, tt.expected) {
				t.Errorf("Expected cycle %v, got %v", tt.expected, cycle.Cycle)
			}
			if !errors.Is(err, ErrCircularDependency) {
				t.Error("Expected error to match ErrCircularDependency")
			}
		})
	}
}

func TestResolveOrder_MissingDependency(t *testing.T) {
	deps := map[string][]string{
		"quiz": {"grader"},
		"feed": nil,
	}

	_, err := ResolveOrder([]string{"feed", "quiz"}, deps)

	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingDependencyError, got %v", err)
	}
	if missing.PluginID != "quiz" || missing.Dependency != "grader" {
		t.Errorf("Unexpected error fields: %+v", missing)
	}
	if !reflect.DeepEqual(missing.Known, []string{"feed", "quiz"}) {
		t.Errorf("Expected known plugins [feed quiz], got %v", missing.Known)
	}
}

func TestResolveSubset(t *testing.T) {
	deps := map[string][]string{
		"quiz": {"feed", "grader"},
		"feed": {"core"},
	}

	// core and grader sit outside the subset and are ignored
	order, err := ResolveSubset([]string{"quiz", "feed"}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"feed", "quiz"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected order %v, got %v", expected, order)
	}
}

func TestResolveOrder_Empty(t *testing.T) {
	order, err := ResolveOrder(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("Expected empty order, got %v", order)
	}
}
