package main

import (
	"fmt"
)

//
// Anything that can be assigned to.  addr is the variable's value slot
// in the heap, an array element, or a workspace address reached
// through one of the indirection operators ? ! | $.  For the array
// kinds addr is the slot holding the array's block address
//

type lvKind int

const (
	lvNone lvKind = iota
	lvInt
	lvFloat
	lvString
	lvByte
	lvWord
	lvIndFloat
	lvIndString
	lvIntArray
	lvFloatArray
	lvStringArray
)

type lvalue struct {
	kind lvKind
	addr offset
}

const indStringTerm = 0x0D

func lvKindOf(kind varKind) lvKind {

	switch kind {
	case varInt:
		return lvInt
	case varString:
		return lvString
	case varIntArray:
		return lvIntArray
	case varFloatArray:
		return lvFloatArray
	case varStringArray:
		return lvStringArray
	}

	return lvFloat
}

func isArrayKind(kind lvKind) bool {

	return kind == lvIntArray || kind == lvFloatArray || kind == lvStringArray
}

func arrayVarKind(kind lvKind) varKind {

	switch kind {
	case lvIntArray:
		return varIntArray
	case lvStringArray:
		return varStringArray
	}

	return varFloatArray
}

//
// Indirection may read anywhere in the workspace but only write to the
// heap, where DIM x n puts byte blocks
//

func (in *interp) checkRead(p offset, n int) {

	if !in.ws.inRange(p, n) {
		runtimeError(EADDRESS, fmt.Sprintf("&%X", int(p)))
	}
}

func (in *interp) checkWrite(p offset, n int) {

	ws := in.ws

	if p < ws.lomem || p+offset(n) > ws.vartop {
		runtimeError(EADDRESS, fmt.Sprintf("&%X", int(p)))
	}
}

func (in *interp) readIndString(p offset) string {

	mem := in.ws.mem
	in.checkRead(p, 1)

	end := p
	for int(end) < len(mem) && mem[end] != indStringTerm && int(end-p) < maxStringLen {
		end++
	}

	return string(mem[p:end])
}

func (in *interp) writeIndString(p offset, str string) {

	in.checkWrite(p, len(str)+1)

	copy(in.ws.mem[p:], str)
	in.ws.mem[p+offset(len(str))] = indStringTerm
}

func (in *interp) loadLValue(lv lvalue) value {

	ws := in.ws

	switch lv.kind {
	case lvInt:
		return value{kind: valInt, i: ws.getInt(lv.addr)}

	case lvFloat:
		return value{kind: valFloat, f: ws.getFloat(lv.addr)}

	case lvString:
		return value{kind: valString, s: ws.stringAt(lv.addr)}

	case lvByte:
		in.checkRead(lv.addr, 1)
		return value{kind: valInt, i: int32(ws.mem[lv.addr])}

	case lvWord:
		in.checkRead(lv.addr, 4)
		return value{kind: valInt, i: ws.getInt(lv.addr)}

	case lvIndFloat:
		in.checkRead(lv.addr, 8)
		return value{kind: valFloat, f: ws.getFloat(lv.addr)}

	case lvIndString:
		return value{kind: valString, s: in.readIndString(lv.addr)}

	case lvIntArray, lvFloatArray, lvStringArray:
		return value{kind: valArray, ak: arrayVarKind(lv.kind), arr: lv.addr}
	}

	panic(brokenError("locals", fmt.Sprintf("bad lvalue kind %d", lv.kind)))
}

//
// Assign v to lv, converting between integer and float as needed
//

func (in *interp) storeLValue(lv lvalue, v value) {

	ws := in.ws

	if isArrayKind(lv.kind) {
		if v.kind != valArray || v.ak != arrayVarKind(lv.kind) {
			runtimeError(ETYPE)
		}
		ws.putU32(lv.addr, ws.getU32(v.arr))
		return
	}

	if (lv.kind == lvString || lv.kind == lvIndString) != (v.kind == valString) ||
		v.kind == valArray {
		runtimeError(ETYPE)
	}

	switch lv.kind {
	case lvInt:
		ws.putInt(lv.addr, toInt(v))

	case lvFloat:
		ws.putFloat(lv.addr, toFloat(v))

	case lvString:
		if err := ws.storeString(lv.addr, v.s); err != nil {
			panic(err)
		}

	case lvByte:
		in.checkWrite(lv.addr, 1)
		ws.mem[lv.addr] = byte(toInt(v))

	case lvWord:
		in.checkWrite(lv.addr, 4)
		ws.putInt(lv.addr, toInt(v))

	case lvIndFloat:
		in.checkWrite(lv.addr, 8)
		ws.putFloat(lv.addr, toFloat(v))

	case lvIndString:
		in.writeIndString(lv.addr, v.s)

	default:
		panic(brokenError("locals", fmt.Sprintf("bad lvalue kind %d", lv.kind)))
	}
}

//
// The bytes that make up the current value of lv, as saved in a LOCAL
// frame.  For a string variable this is the descriptor, so the frame
// takes over the old buffer
//

func (in *interp) localBytes(lv lvalue) []byte {

	ws := in.ws

	n := 0

	switch lv.kind {
	case lvInt, lvWord, lvIntArray, lvFloatArray, lvStringArray:
		n = 4

	case lvFloat, lvIndFloat:
		n = 8

	case lvString:
		n = stringDescSize

	case lvByte:
		n = 1

	case lvIndString:
		return []byte(in.readIndString(lv.addr))
	}

	in.checkRead(lv.addr, n)

	return append([]byte{}, ws.mem[lv.addr:lv.addr+offset(n)]...)
}

//
// Give a variable made local its empty value.  Arrays become undimmed
// so a DIM can place them on the stack; indirected memory keeps its
// contents
//

func (in *interp) clearLValue(lv lvalue) {

	ws := in.ws

	switch lv.kind {
	case lvInt, lvFloat:
		ws.zero(lv.addr, len(in.localBytes(lv)))

	case lvString:
		ws.writeDesc(lv.addr, nilOffset, 0, 0)

	case lvIntArray, lvFloatArray, lvStringArray:
		ws.putU32(lv.addr, localArrayPending)
	}
}

//
// Save lv in a LOCAL frame, or a RETURN parameter frame when dest is
// given, then clear it
//
//   LOCAL:   [kind u32][addr u32][len u32][data]
//   RETURN:  [kind u32][addr u32][len u32][dest kind u32][dest addr u32][data]
//

func (in *interp) saveLocal(lv lvalue, dest *lvalue) {

	ws := in.ws
	data := in.localBytes(lv)

	tag := stackLocal
	header := 12
	if dest != nil {
		tag = stackRetParm
		header = 20
	}

	p := in.pushEntry(tag, header+len(data), true)

	ws.putU32(p, offset(lv.kind))
	ws.putU32(p+4, lv.addr)
	ws.putU32(p+8, offset(len(data)))

	if dest != nil {
		ws.putU32(p+12, offset(dest.kind))
		ws.putU32(p+16, dest.addr)
	}

	copy(ws.mem[p+offset(header):], data)

	in.clearLValue(lv)
}

//
// Put a saved value back.  With copyBack set (a RETURN parameter on a
// normal return) the value the parameter ends with is first written to
// the caller's variable
//

func (in *interp) restoreLocal(p offset, copyBack bool) {

	ws := in.ws

	tag := stackTag(ws.mem[p-entryHeaderSize])
	lv := lvalue{kind: lvKind(ws.getU32(p)), addr: ws.getU32(p + 4)}
	n := offset(ws.getU32(p + 8))

	header := offset(12)
	var dest lvalue
	if tag == stackRetParm {
		header = 20
		dest = lvalue{kind: lvKind(ws.getU32(p + 12)), addr: ws.getU32(p + 16)}
	}

	data := ws.mem[p+header : p+header+n]

	var result value
	var arrayBlock offset
	copyBack = copyBack && tag == stackRetParm

	if copyBack {
		if isArrayKind(lv.kind) {
			arrayBlock = ws.getU32(lv.addr)
		} else {
			result = in.loadLValue(lv)
		}
	}

	switch lv.kind {
	case lvString:
		ptr, _, capacity := ws.readDesc(lv.addr)
		ws.freeBlock(ptr, capacity)
		copy(ws.mem[lv.addr:], data)

	case lvIndString:
		if ws.inRange(lv.addr, int(n)+1) {
			copy(ws.mem[lv.addr:], data)
			ws.mem[lv.addr+n] = indStringTerm
		}

	default:
		if ws.inRange(lv.addr, int(n)) {
			copy(ws.mem[lv.addr:], data)
		}
	}

	if copyBack {
		if isArrayKind(lv.kind) {
			ws.putU32(dest.addr, arrayBlock)
		} else {
			in.storeLValue(dest, result)
		}
	}
}
