package plugins

import (
	"sort"
)

type visitState int

const (
	unvisited visitState = iota
	inProgress
	visited
)

// ResolveOrder returns ids ordered so that every plugin comes after all of its
// dependencies. Traversal follows the order of ids and, within a plugin, the
// declared order of its dependencies, so the result is deterministic.
//
// Every dependency must itself be a key of deps, otherwise a
// *MissingDependencyError is returned. A cycle yields a
// *CircularDependencyError and no partial order.
func ResolveOrder(ids []string, deps map[string][]string) ([]string, error) {
	return resolve(ids, deps, nil)
}

// ResolveSubset orders ids like ResolveOrder but only follows dependency edges
// that point into ids. Dependencies outside the subset are left to the caller.
func ResolveSubset(ids []string, deps map[string][]string) ([]string, error) {
	subset := make(map[string]bool, len(ids))
	for _, id := range ids {
		subset[id] = true
	}
	return resolve(ids, deps, subset)
}

func resolve(ids []string, deps map[string][]string, subset map[string]bool) ([]string, error) {
	state := make(map[string]visitState, len(ids))
	result := make([]string, 0, len(ids))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visited:
			return nil
		case inProgress:
			return &CircularDependencyError{Cycle: cyclePath(path, id)}
		}

		state[id] = inProgress
		path = append(path, id)

		// Visit dependencies first
		for _, dep := range deps[id] {
			if subset != nil {
				if !subset[dep] {
					continue
				}
			} else if _, ok := deps[dep]; !ok {
				return &MissingDependencyError{
					PluginID:   id,
					Dependency: dep,
					Known:      sortedKeys(deps),
				}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[id] = visited
		result = append(result, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	// Result is already in correct order (dependencies before dependents)
	return result, nil
}

// cyclePath trims the traversal path to the part that loops back to id
func cyclePath(path []string, id string) []string {
	for i, p := range path {
		if p == id {
			cycle := append([]string(nil), path[i:]...)
			return append(cycle, id)
		}
	}
	return []string{id, id}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
