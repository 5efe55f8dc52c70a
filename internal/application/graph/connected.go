package graph

// Connected returns every node reachable from selected by following
// dependencies and dependents in either direction, selected included. An
// unknown or empty id yields an empty set.
func (g *Graph) Connected(selected string) map[string]bool {
	visited := make(map[string]bool)
	if !g.Has(selected) {
		return visited
	}
	stack := []string{selected}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, next := range g.dependencies[id] {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
		for _, next := range g.dependents[id] {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return visited
}
