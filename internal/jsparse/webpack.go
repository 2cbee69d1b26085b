package jsparse

import (
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
)

// ModuleID identifies a webpack module. Module IDs are globally unique in
// practice.
type ModuleID = uint32

// ChunkID identifies a webpack chunk.
type ChunkID = uint32

// Module is a module found inside a chunk's module listing. Lo and Hi are
// byte offsets into the original source such that source[Lo:Hi] is the
// module's function expression.
type Module struct {
	ID ModuleID
	Lo uint32
	Hi uint32
}

// Chunk is the payload of a webpack push call: the chunk IDs the script
// provides, the modules it carries, and its entrypoint module IDs.
type Chunk struct {
	Chunks      []ChunkID
	Modules     map[ModuleID]Module
	Entrypoints []ModuleID
}

// WalkWebpackChunk matches the canonical top-level expression statement
//
//	PUSH([chunkIds, moduleListing, entrypoints?])
//
// where PUSH is any call expression and moduleListing is an array literal
// (index is the module ID) or an object literal (numeric key is the module
// ID). Listing entries that are not function-like are skipped silently.
func WalkWebpackChunk(script *Script) (*Chunk, error) {
	root := script.Root()

	stmt := root.NamedChild(0)
	if stmt == nil || stmt.Type() != "expression_statement" {
		return nil, &MissingNodeError{What: "failed to walk ast"}
	}

	call := stmt.NamedChild(0)
	if call == nil || call.Type() != "call_expression" {
		return nil, &MissingNodeError{What: "failed to walk ast"}
	}

	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil, &MissingNodeError{What: "failed to walk ast"}
	}

	payload := args.NamedChild(0)
	if payload == nil || payload.Type() != "array" {
		return nil, &MissingNodeError{What: "failed to walk ast"}
	}

	chunkIDs := payload.NamedChild(0)
	listing := payload.NamedChild(1)
	if chunkIDs == nil || listing == nil {
		return nil, &MissingNodeError{What: "failed to walk ast"}
	}

	chunk := &Chunk{Modules: make(map[ModuleID]Module)}
	chunk.Chunks = numberElements(script, chunkIDs)
	if entrypoints := payload.NamedChild(2); entrypoints != nil {
		chunk.Entrypoints = numberElements(script, entrypoints)
	}

	switch listing.Type() {
	case "array":
		walkArrayListing(listing, chunk)
	case "object":
		walkObjectListing(script, listing, chunk)
	default:
		return nil, &MissingNodeError{What: "failed to walk ast"}
	}

	return chunk, nil
}

// walkArrayListing assigns module IDs by array position. Holes (elisions)
// still advance the position, so all children are iterated, counting commas.
func walkArrayListing(listing *sitter.Node, chunk *Chunk) {
	id := ModuleID(0)
	for i := 0; i < int(listing.ChildCount()); i++ {
		child := listing.Child(i)
		if child.Type() == "," {
			id++
			continue
		}
		if !child.IsNamed() {
			continue
		}
		if isFunctionLike(child.Type()) {
			chunk.Modules[id] = Module{ID: id, Lo: child.StartByte(), Hi: child.EndByte()}
		}
	}
}

func walkObjectListing(script *Script, listing *sitter.Node, chunk *Chunk) {
	for i := 0; i < int(listing.NamedChildCount()); i++ {
		pair := listing.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		value := pair.ChildByFieldName("value")
		if key == nil || value == nil || key.Type() != "number" {
			continue
		}
		if !isFunctionLike(value.Type()) {
			continue
		}
		id, ok := numericID(script.Text(key))
		if !ok {
			continue
		}
		chunk.Modules[id] = Module{ID: id, Lo: value.StartByte(), Hi: value.EndByte()}
	}
}

func numberElements(script *Script, array *sitter.Node) []uint32 {
	if array.Type() != "array" {
		return nil
	}
	var out []uint32
	for i := 0; i < int(array.NamedChildCount()); i++ {
		elem := array.NamedChild(i)
		if elem.Type() != "number" {
			continue
		}
		if id, ok := numericID(script.Text(elem)); ok {
			out = append(out, id)
		}
	}
	return out
}

// numericID truncates a numeric literal to a uint32 ID.
func numericID(text string) (uint32, bool) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return uint32(f), true
}

func isFunctionLike(nodeType string) bool {
	switch nodeType {
	case "function", "function_expression", "arrow_function",
		"generator_function", "generator_function_expression":
		return true
	default:
		return false
	}
}
