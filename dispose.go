package vrm

// deepDispose releases every geometry, material, texture and skeleton
// below root. Each resource is released at most once even when shared.
func deepDispose(root *Node) {
	seen := map[interface{}]bool{}
	root.Traverse(func(n *Node) {
		for _, m := range n.Meshes {
			if m == nil {
				continue
			}
			if g := m.Geometry; g != nil && !seen[g] {
				seen[g] = true
				g.Dispose()
			}
			if mt := m.Material; mt != nil && !seen[mt] {
				seen[mt] = true
				mt.Dispose()
			}
			if s := m.Skeleton; s != nil && !seen[s] {
				seen[s] = true
				s.Dispose()
			}
		}
	})
}

// disposeScene releases the resources of root and detaches its children,
// last one first.
func disposeScene(root *Node) {
	if root == nil {
		return
	}
	for len(root.Children) > 0 {
		child := root.Children[len(root.Children)-1]
		deepDispose(child)
		root.Remove(child)
	}
	deepDispose(root)
}
