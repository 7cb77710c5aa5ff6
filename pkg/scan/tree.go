package scan

import (
	"slices"
	"strings"
)

type treeNode struct {
	name     string
	isDir    bool
	children map[string]*treeNode
}

// Tree renders the directory structure of entries, headed by rootName + "/".
// Directories sort before files, then names case-insensitively.
func Tree(rootName string, entries []FileEntry) string {
	root := &treeNode{name: rootName, isDir: true, children: map[string]*treeNode{}}
	for _, entry := range entries {
		node := root
		parts := strings.Split(entry.Path, "/")
		for i, part := range parts {
			child, ok := node.children[part]
			if !ok {
				child = &treeNode{name: part, isDir: i < len(parts)-1, children: map[string]*treeNode{}}
				node.children[part] = child
			}
			node = child
		}
	}

	lines := []string{rootName + "/"}
	lines = renderTree(root, "", lines)
	return strings.Join(lines, "\n")
}

func renderTree(node *treeNode, prefix string, lines []string) []string {
	children := make([]*treeNode, 0, len(node.children))
	for _, child := range node.children {
		children = append(children, child)
	}
	slices.SortFunc(children, func(a, b *treeNode) int {
		if a.isDir != b.isDir {
			if a.isDir {
				return -1
			}
			return 1
		}
		if c := strings.Compare(strings.ToLower(a.name), strings.ToLower(b.name)); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})

	for i, child := range children {
		connector := "├── "
		extension := "│   "
		if i == len(children)-1 {
			connector = "└── "
			extension = "    "
		}

		if child.isDir {
			lines = append(lines, prefix+connector+child.name+"/")
			lines = renderTree(child, prefix+extension, lines)
		} else {
			lines = append(lines, prefix+connector+child.name)
		}
	}
	return lines
}
