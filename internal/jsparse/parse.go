// Package jsparse parses bundler-emitted JavaScript and walks the resulting
// syntax tree to recover module listings and CSS class mapping tables.
package jsparse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// SyntaxError reports that the source could not be parsed cleanly.
type SyntaxError struct {
	Offset uint32
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error near byte %d", e.Offset)
}

// MissingNodeError reports that the tree did not have the expected shape.
// The bundler's output is arbitrary and can change at any time; when it does,
// a manual reinspection is required, so the message stays coarse.
type MissingNodeError struct {
	What string
}

func (e *MissingNodeError) Error() string {
	return "missing ast node: " + e.What
}

// Script is a parsed JavaScript source. Close must be called to release the
// underlying tree.
type Script struct {
	tree   *sitter.Tree
	source []byte
}

// Parse parses a JavaScript source string into a Script.
func Parse(ctx context.Context, source string) (*Script, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	src := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	if node := firstErrorNode(tree.RootNode()); node != nil {
		offset := node.StartByte()
		tree.Close()
		return nil, &SyntaxError{Offset: offset}
	}

	return &Script{tree: tree, source: src}, nil
}

// Root returns the root node of the parsed tree.
func (s *Script) Root() *sitter.Node {
	return s.tree.RootNode()
}

// Source returns the original source bytes the tree was parsed from.
func (s *Script) Source() []byte {
	return s.source
}

// Text returns the source text covered by a node.
func (s *Script) Text(n *sitter.Node) string {
	return n.Content(s.source)
}

// Close releases the parse tree.
func (s *Script) Close() {
	s.tree.Close()
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if !n.HasError() {
		return nil
	}
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstErrorNode(n.Child(i)); found != nil {
			return found
		}
	}
	return n
}
