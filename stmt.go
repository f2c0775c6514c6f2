package main

import (
	"fmt"
	"github.com/danswartzendruber/avl"
	"strings"
)

//
// A set of wrapper routines to the AVL package.  We do this to
// hide the AVL interface from the interpreter code.  Two kinds of
// tree are kept: the symbol table, which maps a name to the heap slot
// of a variable or the heap block describing a PROC/FN, and one
// definition index per library
//

type symbolNode struct {
	avl  avl.AvlNode
	name string
	kind varKind
	addr offset
}

type defNode struct {
	avl    avl.AvlNode
	name   string
	record offset
	pc     offset
}

func cmpSymbolKey(key any, node any) int {

	return strings.Compare(key.(string), node.(*symbolNode).name)
}

func cmpSymbolNodes(node1, node2 any) int {

	return strings.Compare(node1.(*symbolNode).name, node2.(*symbolNode).name)
}

func cmpDefKey(key any, node any) int {

	return strings.Compare(key.(string), node.(*defNode).name)
}

func cmpDefNodes(node1, node2 any) int {

	return strings.Compare(node1.(*defNode).name, node2.(*defNode).name)
}

func (in *interp) symAvlTreeLookup(name string) *symbolNode {

	p := avl.AvlTreeLookup(in.symtab, name, cmpSymbolKey)
	if p != nil {
		return p.(*symbolNode)
	} else {
		return nil
	}
}

func (in *interp) symAvlTreeInsert(sym *symbolNode) {

	p := avl.AvlTreeInsert(&in.symtab, &sym.avl, sym, cmpSymbolNodes)
	if p != nil {
		panic(brokenError("symtab", fmt.Sprintf("symbol %q already in tree", sym.name)))
	}
}

func (in *interp) symAvlTreeFirstInOrder() *symbolNode {

	p := avl.AvlTreeFirstInOrder(in.symtab)
	if p != nil {
		return p.(*symbolNode)
	} else {
		return nil
	}
}

func symAvlTreeNextInOrder(sym *symbolNode) *symbolNode {

	p := avl.AvlTreeNextInOrder(&sym.avl)
	if p != nil {
		return p.(*symbolNode)
	} else {
		return nil
	}
}

//
// Per-library definition index.  The first definition of a name wins,
// so a duplicate is reported back rather than inserted
//

func defAvlTreeInsert(root **avl.AvlNode, def *defNode) bool {

	if defAvlTreeLookup(*root, def.name) != nil {
		return false
	}

	p := avl.AvlTreeInsert(root, &def.avl, def, cmpDefNodes)
	if p != nil {
		panic(brokenError("library", fmt.Sprintf("definition %q already in tree", def.name)))
	}

	return true
}

func defAvlTreeLookup(root *avl.AvlNode, name string) *defNode {

	p := avl.AvlTreeLookup(root, name, cmpDefKey)
	if p != nil {
		return p.(*defNode)
	} else {
		return nil
	}
}
