package jsparse

import sitter "github.com/smacker/go-tree-sitter"

// ClassMapping maps source class names to their runtime class names.
type ClassMapping map[string]string

// ClassModules maps module IDs to their class mappings.
type ClassModules map[ModuleID]ClassMapping

// WalkClassesChunk walks a chunk script containing class name mapping tables.
//
// The walk is two-level: any key-value whose key is a numeric literal opens a
// module, and within that module's value every key-value pairing an
// identifier or string key with a string literal contributes an entry.
// Deeper numeric keys do not open new modules.
func WalkClassesChunk(script *Script) (ClassModules, error) {
	modules := make(ClassModules)

	visitPairs(script.Root(), func(pair *sitter.Node) {
		key := pair.ChildByFieldName("key")
		value := pair.ChildByFieldName("value")
		if key == nil || value == nil || key.Type() != "number" {
			return
		}
		id, ok := numericID(script.Text(key))
		if !ok {
			return
		}

		mapping := make(ClassMapping)
		visitPairs(value, func(inner *sitter.Node) {
			k := inner.ChildByFieldName("key")
			v := inner.ChildByFieldName("value")
			if k == nil || v == nil || v.Type() != "string" {
				return
			}
			var name string
			switch k.Type() {
			case "property_identifier":
				name = script.Text(k)
			case "string":
				name = stringValue(script, k)
			default:
				return
			}
			mapping[name] = stringValue(script, v)
		})

		modules[id] = mapping
	})

	return modules, nil
}

// visitPairs calls fn for every key-value property reachable from n without
// passing through another key-value property. Recursion stops at each pair;
// fn decides whether to descend further.
func visitPairs(n *sitter.Node, fn func(*sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "pair" {
			fn(child)
			continue
		}
		visitPairs(child, fn)
	}
}

// stringValue returns the unquoted content of a string literal node.
func stringValue(script *Script, n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "string_fragment" {
			return script.Text(child)
		}
	}
	return ""
}
