package schema

import "strings"

// Entry describes one script of the tree.
type Entry struct {
	Path        []string `json:"path"`
	Kind        string   `json:"kind"`
	Description string   `json:"description,omitempty"`
}

// Name joins the path with "/".
func (e Entry) Name() string { return strings.Join(e.Path, "/") }

// ListScripts lists every script of the tree in declaration order, depth first.
// Nodes that fail to classify are listed with kind "invalid".
func (d *Document) ListScripts() []Entry {
	var out []Entry
	var walk func(prefix []string, group *Map)
	walk = func(prefix []string, group *Map) {
		for _, key := range Children(group) {
			node, _ := group.Get(key)
			path := append(append([]string{}, prefix...), key)
			s, ok, err := Classify(node)
			switch {
			case err != nil:
				out = append(out, Entry{Path: path, Kind: "invalid", Description: err.Error()})
			case ok:
				out = append(out, Entry{Path: path, Kind: s.Kind(), Description: s.Common().Description})
			default:
				if child, isMap := node.(*Map); isMap {
					walk(path, child)
				}
			}
		}
	}
	walk(nil, d.Scripts)
	return out
}

// GroupEntry describes one env group.
type GroupEntry struct {
	Name        string   `json:"name"`
	Keys        []string `json:"keys"`
	Description string   `json:"description,omitempty"`
}

// ListGroups lists the env groups with their variable names.
func (d *Document) ListGroups() []GroupEntry {
	var out []GroupEntry
	for _, name := range d.GroupNames() {
		g := GroupEntry{Name: name}
		if group, ok := d.Group(name); ok {
			g.Keys = Children(group)
			if desc, ok := group.Get("$description"); ok {
				g.Description, _ = Scalar(desc)
			}
		}
		out = append(out, g)
	}
	return out
}
