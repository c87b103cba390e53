package aggregate

import "go.llib.dev/aggregate/mapping"

// writeOrder sorts the types so that referenced rows are written before the rows referencing them.
// A belongs-to target precedes its owner, a has-many or has-one owner precedes its children.
// Ties, and types caught in a reference cycle, keep their discovery order,
// thus the result is deterministic for a given aggregate shape.
func writeOrder(discovered []mapping.Config) []mapping.Config {
	index := make(map[string]int, len(discovered))
	for i, c := range discovered {
		index[c.Name()] = i
	}
	var (
		edges    = make([][]int, len(discovered))
		inDegree = make([]int, len(discovered))
		seen     = make(map[[2]int]struct{})
	)
	addEdge := func(from, to int) {
		if from == to {
			return
		}
		if _, ok := seen[[2]int{from, to}]; ok {
			return
		}
		seen[[2]int{from, to}] = struct{}{}
		edges[from] = append(edges[from], to)
		inDegree[to]++
	}
	for i, c := range discovered {
		for _, a := range c.Associations() {
			for _, target := range a.Targets() {
				j, ok := index[target]
				if !ok {
					continue
				}
				if a.Kind() == mapping.BelongsTo {
					addEdge(j, i)
				} else {
					addEdge(i, j)
				}
			}
		}
	}
	var (
		out  = make([]mapping.Config, 0, len(discovered))
		done = make([]bool, len(discovered))
	)
	for len(out) < len(discovered) {
		next := -1
		for i := range discovered {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 { // cycle
			for i := range discovered {
				if !done[i] {
					next = i
					break
				}
			}
		}
		done[next] = true
		out = append(out, discovered[next])
		for _, to := range edges[next] {
			inDegree[to]--
		}
	}
	return out
}

func reverseConfigs(cs []mapping.Config) []mapping.Config {
	out := make([]mapping.Config, 0, len(cs))
	for i := len(cs) - 1; 0 <= i; i-- {
		out = append(out, cs[i])
	}
	return out
}
