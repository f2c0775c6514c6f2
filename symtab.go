package main

import (
	"fmt"
	"strings"
)

//
// Variables live in the heap.  The symbol table maps each name to its
// value slot: four bytes for an integer, eight for a float, a string
// descriptor for a string, and for an array the address of its block.
// A resolved variable token caches the slot address so the tree is only
// searched the first time a token runs
//

//
// Initialize the symbol table to pristine state
//

func (in *interp) initSymbolTable() {

	in.symtab = nil
	in.defsScanned = false
}

//
// The kind of a variable is spelled out by its name
//

func kindOfName(name string) varKind {

	switch {
	case strings.HasSuffix(name, "%("):
		return varIntArray
	case strings.HasSuffix(name, "$("):
		return varStringArray
	case strings.HasSuffix(name, "("):
		return varFloatArray
	case strings.HasSuffix(name, "%"):
		return varInt
	case strings.HasSuffix(name, "$"):
		return varString
	}

	return varFloat
}

func isArrayVar(kind varKind) bool {

	return kind == varIntArray || kind == varFloatArray || kind == varStringArray
}

func elementKind(kind varKind) varKind {

	switch kind {
	case varIntArray:
		return varInt
	case varStringArray:
		return varString
	}

	return varFloat
}

func slotSize(kind varKind) int {

	switch kind {
	case varFloat:
		return 8
	case varString:
		return stringDescSize
	}

	return 4
}

func (in *interp) lookupVar(name string) (offset, bool) {

	sym := in.symAvlTreeLookup(name)
	if sym == nil {
		return nilOffset, false
	}

	return sym.addr, true
}

func (in *interp) createVar(name string, kind varKind) offset {

	addr, err := in.ws.allocate(slotSize(kind))
	if err != nil {
		panic(err)
	}

	in.ws.zero(addr, slotSize(kind))
	in.symAvlTreeInsert(&symbolNode{name: name, kind: kind, addr: addr})

	return addr
}

//
// Fetch the slot for the variable token at pc, creating the variable
// if asked to, and step over the token.  An unresolved token is
// resolved on the way
//

func (in *interp) variable(create bool) (offset, string, varKind) {

	ws := in.ws
	mem := ws.mem
	p := in.pc

	name := tokenName(mem, p)
	kind := kindOfName(name)
	size := offset(tokenSize(mem, p))

	if mem[p] == tokVar {
		in.pc += size
		return ws.getU32(p + 1), name, kind
	}

	addr, ok := in.lookupVar(name)
	if !ok {
		switch {
		case create:
			addr = in.createVar(name, kind)
		case isArrayVar(kind):
			runtimeError(EARRAY, name+")")
		default:
			runtimeError(ENOSUCHVAR, name)
		}
	}

	resolveName(mem, p, addr)
	in.nameRefs = true
	in.pc += size

	return addr, name, kind
}

func indirectKind(c byte) lvKind {

	switch c {
	case '?':
		return lvByte
	case '!':
		return lvWord
	case '|':
		return lvIndFloat
	}

	return lvIndString
}

//
// Parse something that can be assigned to: a variable, an array
// element, a whole array (name followed by empty brackets) or an
// indirection.  Binary ? and ! follow a numeric variable, as in A%!4
//

func (in *interp) parseLValue(create bool) lvalue {

	c := in.ws.mem[in.pc]

	switch {
	case c == '?' || c == '!' || c == '|' || c == '$':
		in.pc++
		in.factor()
		return lvalue{kind: indirectKind(c), addr: offset(in.popInt())}

	case !isVarToken(c):
		runtimeError(ESYNTAX)
	}

	slot, _, kind := in.variable(create)

	if isArrayVar(kind) {
		if in.ws.mem[in.pc] == ')' {
			in.pc++
			return lvalue{kind: lvKindOf(kind), addr: slot}
		}
		subs := in.subscripts()
		return lvalue{kind: lvKindOf(elementKind(kind)), addr: in.elementAddr(slot, kind, subs)}
	}

	lv := lvalue{kind: lvKindOf(kind), addr: slot}

	if op := in.ws.mem[in.pc]; kind != varString && (op == '?' || op == '!') {
		in.pc++
		base := toInt(in.loadLValue(lv))
		in.factor()
		return lvalue{kind: indirectKind(op), addr: offset(base) + offset(in.popInt())}
	}

	return lv
}

//
// Subscript list up to and including the closing bracket
//

func (in *interp) subscripts() []int {

	var subs []int

	for {
		in.expression()
		subs = append(subs, int(in.popInt()))

		switch in.ws.mem[in.pc] {
		case ',':
			in.pc++
			if len(subs) >= maxDims {
				runtimeError(ESUBSCRIPT)
			}
			continue

		case ')':
			in.pc++
			return subs
		}

		runtimeError(EMISSINGRPAREN)
	}
}

//
// Arrays.  A block is
//
//   [ndims u32][bound u32 ...][pad][elements]
//
// with elements stored row major.  Bounds are inclusive, so DIM A(3)
// has four elements
//

func arrayHeaderSize(ndims int) int {

	return int(alignUp(offset(4 + 4*ndims)))
}

func (in *interp) dimArray(slot offset, kind varKind, dims []int) {

	ws := in.ws
	block := ws.getU32(slot)

	if block != nilOffset && block != localArrayPending {
		runtimeError(EBADDIM)
	}

	if len(dims) == 0 || len(dims) > maxDims {
		runtimeError(EBADDIM)
	}

	count := 1
	for _, d := range dims {
		if d < 0 {
			runtimeError(EBADDIM)
		}
		count *= d + 1
		if count > len(ws.mem) {
			runtimeError(ENOROOM)
		}
	}

	size := arrayHeaderSize(len(dims)) + count*slotSize(elementKind(kind))

	var p offset

	if block == localArrayPending {
		p = in.pushLocalArray(size)
	} else {
		var err error
		if p, err = ws.allocate(size); err != nil {
			panic(err)
		}
		ws.zero(p, size)
	}

	ws.putU32(p, offset(len(dims)))
	for i, d := range dims {
		ws.putU32(p+4+offset(4*i), offset(d))
	}

	ws.putU32(slot, p)
}

func (in *interp) elementAddr(slot offset, kind varKind, subs []int) offset {

	ws := in.ws
	block := ws.getU32(slot)

	if block == nilOffset || block == localArrayPending {
		runtimeError(EARRAY)
	}

	ndims := int(ws.getU32(block))
	if len(subs) != ndims {
		runtimeError(ESUBSCRIPT)
	}

	index := 0
	for i, sub := range subs {
		bound := int(ws.getU32(block + 4 + offset(4*i)))
		if sub < 0 || sub > bound {
			runtimeError(ESUBSCRIPT)
		}
		index = index*(bound+1) + sub
	}

	return block + offset(arrayHeaderSize(ndims)+index*slotSize(elementKind(kind)))
}

//
// PROC and FN definitions.  A definition is a small heap block holding
// the record of the DEF line and the position just after the name in
// its executable stream; resolved PROC/FN tokens cache the block's
// address
//

func scanDefinitions(mem []byte, base offset, add func(name string, rec, pc offset)) {

	for p := base; !atProgramEnd(mem, p); p = nextLine(mem, p) {
		q := execStart(mem, p)
		if mem[q] != tokDEF {
			continue
		}

		q++

		prefix := "PROC"
		switch {
		case isFnToken(mem[q]):
			prefix = "FN"
		case !isProcToken(mem[q]):
			continue
		}

		add(prefix+tokenName(mem, q), p, q+offset(tokenSize(mem, q)))
	}
}

func (in *interp) defineProc(name string, rec, pc offset) offset {

	if sym := in.symAvlTreeLookup(name); sym != nil {
		return sym.addr
	}

	block, err := in.ws.allocate(8)
	if err != nil {
		panic(err)
	}

	in.ws.putU32(block, rec)
	in.ws.putU32(block+4, pc)

	kind := varProc
	if strings.HasPrefix(name, "FN") {
		kind = varFn
	}

	in.symAvlTreeInsert(&symbolNode{name: name, kind: kind, addr: block})

	return block
}

//
// Search the program first, then the libraries, most recently loaded
// first
//

func (in *interp) findDefinition(name string) offset {

	if sym := in.symAvlTreeLookup(name); sym != nil {
		return sym.addr
	}

	if !in.defsScanned {
		in.defsScanned = true
		scanDefinitions(in.ws.mem, in.ws.page, func(n string, rec, pc offset) {
			in.defineProc(n, rec, pc)
		})
		if sym := in.symAvlTreeLookup(name); sym != nil {
			return sym.addr
		}
	}

	if def := in.libs.lookup(name); def != nil {
		return in.defineProc(name, def.record, def.pc)
	}

	runtimeError(ENOSUCHPROC, name)

	return nilOffset
}

//
// Step over the PROC or FN token at pc and return where its DEF is
//

func (in *interp) procToken() (offset, offset) {

	ws := in.ws
	mem := ws.mem
	p := in.pc
	size := offset(tokenSize(mem, p))

	var block offset

	if mem[p] == tokProcRef || mem[p] == tokFnRef {
		block = ws.getU32(p + 1)
	} else {
		prefix := "PROC"
		if isFnToken(mem[p]) {
			prefix = "FN"
		}
		block = in.findDefinition(prefix + tokenName(mem, p))
		resolveName(mem, p, block)
		in.nameRefs = true
	}

	in.pc += size

	return ws.getU32(block), ws.getU32(block + 4)
}

//
// One line per variable, for TRACE DUMP
//

func (in *interp) variableList() []string {

	var list []string

	for sym := in.symAvlTreeFirstInOrder(); sym != nil; sym = symAvlTreeNextInOrder(sym) {
		switch sym.kind {
		case varProc, varFn:
			rec := in.ws.getU32(sym.addr)
			list = append(list, fmt.Sprintf("%s defined at line %d", sym.name,
				lineNumber(in.ws.mem, rec)))

		case varIntArray, varFloatArray, varStringArray:
			list = append(list, fmt.Sprintf("%s) block at %d", sym.name,
				in.ws.getU32(sym.addr)))

		default:
			v := in.loadLValue(lvalue{kind: lvKindOf(sym.kind), addr: sym.addr})
			list = append(list, fmt.Sprintf("%s = %s", sym.name, formatValue(v)))
		}
	}

	return list
}
