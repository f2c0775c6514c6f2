package main

import (
	"fmt"
	"github.com/goforj/godump"
	"github.com/tliron/commonlog"
)

//
// The evaluation stack lives at the top of the workspace and grows
// down from himem.  Every entry starts with an eight byte header
//
//   [tag u8][pad 3][size u32]
//
// where size covers header and payload and is a multiple of eight, so
// any entry can be stepped over without knowing what it holds.  The
// same stack carries expression operands, loop and call frames, saved
// locals and saved error handlers, all interleaved
//

var stackLog = commonlog.GetLogger("brandy.stack")

type stackTag byte

const (
	stackUnknown stackTag = iota
	stackInt
	stackFloat
	stackString
	stackStrTemp
	stackIntArray
	stackFloatArray
	stackStringArray
	stackLocArray
	stackLValue
	stackGosub
	stackProc
	stackFn
	stackLocal
	stackRetParm
	stackWhile
	stackRepeat
	stackIntFor
	stackFloatFor
	stackError
	stackData
	stackOpStack
	stackRestart
	stackLastTag
)

const entryHeaderSize = 8

var stackTagNames = [stackLastTag]string{
	stackUnknown:     "unknown",
	stackInt:         "integer",
	stackFloat:       "float",
	stackString:      "string",
	stackStrTemp:     "temporary string",
	stackIntArray:    "integer array",
	stackFloatArray:  "float array",
	stackStringArray: "string array",
	stackLocArray:    "local array",
	stackLValue:      "lvalue",
	stackGosub:       "GOSUB",
	stackProc:        "PROC",
	stackFn:          "FN",
	stackLocal:       "LOCAL",
	stackRetParm:     "RETURN parameter",
	stackWhile:       "WHILE",
	stackRepeat:      "REPEAT",
	stackIntFor:      "integer FOR",
	stackFloatFor:    "float FOR",
	stackError:       "LOCAL ERROR",
	stackData:        "LOCAL DATA",
	stackOpStack:     "operator stack",
	stackRestart:     "restart",
}

//
// Disposable entries may be thrown away, after their cleanup has run,
// while looking for an enclosing frame.  Running into anything else
// ends the search
//

var stackDisposable = [stackLastTag]bool{
	stackInt:         true,
	stackFloat:       true,
	stackString:      true,
	stackStrTemp:     true,
	stackIntArray:    true,
	stackFloatArray:  true,
	stackStringArray: true,
	stackLValue:      true,
	stackWhile:       true,
	stackRepeat:      true,
	stackIntFor:      true,
	stackFloatFor:    true,
	stackError:       true,
	stackData:        true,
	stackOpStack:     true,
}

//
// Decode the header at p.  ok is false for anything that cannot be a
// stack entry: unknown tag, bad size or an entry running past himem
//

func (in *interp) entryAt(p offset) (stackTag, offset, bool) {

	ws := in.ws

	if p < ws.vartop || p+entryHeaderSize > ws.himem {
		return stackUnknown, 0, false
	}

	tag := stackTag(ws.mem[p])
	size := ws.getU32(p + 4)

	if tag == stackUnknown || tag >= stackLastTag || size < entryHeaderSize ||
		size%align != 0 || p+size > ws.himem {
		return tag, size, false
	}

	return tag, size, true
}

func (in *interp) topTag() stackTag {

	if in.ws.sp >= in.ws.himem {
		return stackUnknown
	}

	tag, _, ok := in.entryAt(in.ws.sp)
	if !ok {
		panic(brokenError("stack", fmt.Sprintf("bad entry at %d", in.ws.sp)))
	}

	return tag
}

//
// Make room for an entry and return the address of its payload.
// Frames must leave stackBuffer bytes clear of the heap; operands only
// have to stay off it, since expression evaluation checks for room
// before it starts
//

func (in *interp) pushEntry(tag stackTag, payload int, frame bool) offset {

	ws := in.ws
	size := alignUp(offset(entryHeaderSize + payload))

	limit := ws.vartop
	if frame {
		limit = ws.stacklimit
	}

	if ws.sp-size < limit {
		stackLog.Debugf("no room for %s entry (%d bytes), sp %d limit %d",
			stackTagNames[tag], size, ws.sp, limit)
		runtimeError(ESTACKFULL)
	}

	ws.sp -= size
	ws.zero(ws.sp, int(size))
	ws.mem[ws.sp] = byte(tag)
	ws.putU32(ws.sp+4, size)

	return ws.sp + entryHeaderSize
}

//
// Check there is room for a full operator stack's worth of operands
//

func (in *interp) checkStack(n int) {

	ws := in.ws

	if ws.sp-offset(n) < ws.stacklimit {
		runtimeError(ESTACKFULL)
	}
}

//
// Operands
//

func (in *interp) pushInt(v int32) {

	p := in.pushEntry(stackInt, 4, false)
	in.ws.putInt(p, v)
}

func (in *interp) pushFloat(f float64) {

	p := in.pushEntry(stackFloat, 8, false)
	in.ws.putFloat(p, f)
}

func (in *interp) pushBool(b bool) {

	if b {
		in.pushInt(boolTrue)
	} else {
		in.pushInt(boolFalse)
	}
}

//
// A string that lives somewhere else (a variable or a constant in the
// program).  The entry borrows the characters and owns nothing
//

func (in *interp) pushStringRef(ptr offset, length int) {

	p := in.pushEntry(stackString, 8, false)
	in.ws.putU32(p, ptr)
	in.ws.putU32(p+4, offset(length))
}

//
// A string built by the expression code.  Its characters are copied
// into a heap block owned by the entry, which discarding hands back
//

func (in *interp) pushString(str string) {

	if len(str) > maxStringLen {
		runtimeError(ESTRINGLEN)
	}

	ptr, err := in.ws.allocString(str)
	if err != nil {
		panic(err)
	}

	p := in.pushEntry(stackStrTemp, 12, false)
	in.ws.writeDesc(p, ptr, len(str), int(alignUp(offset(len(str)))))
}

func (in *interp) pushArray(kind varKind, slot offset) {

	tag := stackFloatArray
	switch kind {
	case varIntArray:
		tag = stackIntArray
	case varStringArray:
		tag = stackStringArray
	}

	p := in.pushEntry(tag, 4, false)
	in.ws.putU32(p, slot)
}

func (in *interp) pushValue(v value) {

	switch v.kind {
	case valInt:
		in.pushInt(v.i)

	case valFloat:
		in.pushFloat(v.f)

	case valString:
		in.pushString(v.s)

	case valArray:
		in.pushArray(v.ak, v.arr)
	}
}

//
// Lift the operand on top of the stack into Go and discard the entry
//

func (in *interp) popValue() value {

	ws := in.ws
	p := ws.sp + entryHeaderSize

	var v value

	switch in.topTag() {
	default:
		panic(brokenError("stack", fmt.Sprintf("expected an operand, found %s entry",
			stackTagNames[in.topTag()])))

	case stackInt:
		v = value{kind: valInt, i: ws.getInt(p)}

	case stackFloat:
		v = value{kind: valFloat, f: ws.getFloat(p)}

	case stackString:
		ptr, length := ws.getU32(p), ws.getU32(p+4)
		v = value{kind: valString, s: string(ws.mem[ptr : ptr+length])}

	case stackStrTemp:
		v = value{kind: valString, s: ws.stringAt(p)}

	case stackIntArray:
		v = value{kind: valArray, ak: varIntArray, arr: ws.getU32(p)}

	case stackFloatArray:
		v = value{kind: valArray, ak: varFloatArray, arr: ws.getU32(p)}

	case stackStringArray:
		v = value{kind: valArray, ak: varStringArray, arr: ws.getU32(p)}
	}

	in.discard(false)

	return v
}

func (in *interp) popNumber() value {

	v := in.popValue()
	if v.kind != valInt && v.kind != valFloat {
		runtimeError(ETYPE)
	}

	return v
}

func (in *interp) popInt() int32 {

	return toInt(in.popNumber())
}

func (in *interp) popFloat() float64 {

	return toFloat(in.popNumber())
}

func (in *interp) popString() string {

	v := in.popValue()
	if v.kind != valString {
		runtimeError(ETYPE)
	}

	return v.s
}

//
// Control frames
//

func (in *interp) pushReturn(tag stackTag, pc, line offset) {

	p := in.pushEntry(tag, 8, true)
	in.ws.putU32(p, pc)
	in.ws.putU32(p+4, line)

	if tag == stackProc || tag == stackFn {
		in.procDepth++
	}
}

func (in *interp) readReturn(p offset) (offset, offset) {

	return in.ws.getU32(p), in.ws.getU32(p + 4)
}

func (in *interp) pushLValue(lv lvalue) {

	p := in.pushEntry(stackLValue, 8, false)
	in.ws.putU32(p, offset(lv.kind))
	in.ws.putU32(p+4, lv.addr)
}

func (in *interp) popLValue() lvalue {

	if in.topTag() != stackLValue {
		panic(brokenError("stack", "expected an lvalue"))
	}

	p := in.ws.sp + entryHeaderSize
	lv := lvalue{kind: lvKind(in.ws.getU32(p)), addr: in.ws.getU32(p + 4)}

	in.discard(false)

	return lv
}

type forFrame struct {
	lv       lvalue
	isInt    bool
	ilimit   int32
	istep    int32
	flimit   float64
	fstep    float64
	bodyPC   offset
	bodyLine offset
}

func (in *interp) pushFor(f forFrame) {

	ws := in.ws

	if f.isInt {
		p := in.pushEntry(stackIntFor, 24, true)
		ws.putU32(p, offset(f.lv.kind))
		ws.putU32(p+4, f.lv.addr)
		ws.putInt(p+8, f.ilimit)
		ws.putInt(p+12, f.istep)
		ws.putU32(p+16, f.bodyPC)
		ws.putU32(p+20, f.bodyLine)
		return
	}

	p := in.pushEntry(stackFloatFor, 32, true)
	ws.putU32(p, offset(f.lv.kind))
	ws.putU32(p+4, f.lv.addr)
	ws.putFloat(p+8, f.flimit)
	ws.putFloat(p+16, f.fstep)
	ws.putU32(p+24, f.bodyPC)
	ws.putU32(p+28, f.bodyLine)
}

func (in *interp) readFor(p offset) forFrame {

	ws := in.ws
	tag := stackTag(ws.mem[p-entryHeaderSize])

	f := forFrame{lv: lvalue{kind: lvKind(ws.getU32(p)), addr: ws.getU32(p + 4)}}

	if tag == stackIntFor {
		f.isInt = true
		f.ilimit = ws.getInt(p + 8)
		f.istep = ws.getInt(p + 12)
		f.bodyPC = ws.getU32(p + 16)
		f.bodyLine = ws.getU32(p + 20)
	} else {
		f.flimit = ws.getFloat(p + 8)
		f.fstep = ws.getFloat(p + 16)
		f.bodyPC = ws.getU32(p + 24)
		f.bodyLine = ws.getU32(p + 28)
	}

	return f
}

func (in *interp) pushErrorFrame() {

	ws := in.ws
	p := in.pushEntry(stackError, 16, true)

	if in.errh.set {
		ws.mem[p] = 1
	}
	if in.errh.local {
		ws.mem[p+1] = 1
	}
	ws.putU32(p+4, in.errh.pc)
	ws.putU32(p+8, in.errh.line)
	ws.putU32(p+12, in.errh.sp)
}

func (in *interp) readErrorFrame(p offset) errorHandler {

	ws := in.ws

	return errorHandler{
		set:   ws.mem[p] != 0,
		local: ws.mem[p+1] != 0,
		pc:    ws.getU32(p + 4),
		line:  ws.getU32(p + 8),
		sp:    ws.getU32(p + 12),
	}
}

func (in *interp) pushDataFrame() {

	p := in.pushEntry(stackData, 8, true)
	in.ws.putU32(p, in.dataLine)
	in.ws.putU32(p+4, in.dataPtr)
}

func (in *interp) pushOpStack() {

	p := in.pushEntry(stackOpStack, 4, true)
	in.ws.putU32(p, offset(in.exprDepth))
}

func (in *interp) pushRestart(depth int) offset {

	p := in.pushEntry(stackRestart, 4, true)
	in.ws.putU32(p, offset(depth))

	return in.ws.sp
}

//
// Space for a LOCAL array's elements, released with the frame
//

func (in *interp) pushLocalArray(size int) offset {

	p := in.pushEntry(stackLocArray, 8+size, true)
	in.ws.putU32(p, offset(size))

	return alignUp(p + 8)
}

//
// The discard table.  Pop the top entry, undoing whatever it stands
// for.  returning is set when a call is completing normally, which is
// the only time RETURN parameters copy their value back
//

func (in *interp) discard(returning bool) {

	ws := in.ws

	tag, size, ok := in.entryAt(ws.sp)
	if !ok {
		panic(brokenError("stack", fmt.Sprintf("bad entry (tag %d, size %d) at %d",
			tag, size, ws.sp)))
	}

	p := ws.sp + entryHeaderSize

	switch tag {
	case stackStrTemp:
		ptr, _, capacity := ws.readDesc(p)
		ws.freeBlock(ptr, capacity)

	case stackLocal:
		in.restoreLocal(p, false)

	case stackRetParm:
		// Popped first: a failed copy back must not restore it twice
		ws.sp += size
		in.restoreLocal(p, returning)
		return

	case stackProc, stackFn:
		in.procDepth--

	case stackError:
		in.errh = in.readErrorFrame(p)

	case stackData:
		in.dataLine = ws.getU32(p)
		in.dataPtr = ws.getU32(p + 4)

	case stackOpStack:
		in.exprDepth = int(ws.getU32(p))
	}

	ws.sp += size
}

//
// Discard everything down to target, running the cleanup for each
// entry.  A damaged entry stops the walk: the rest is dropped without
// cleanup since nothing in it can be trusted
//

func (in *interp) unwindTo(target offset) {

	ws := in.ws

	if target > ws.himem {
		target = ws.himem
	}

	for ws.sp < target {
		tag, size, ok := in.entryAt(ws.sp)
		if !ok || ws.sp+size > target {
			stackLog.Errorf("unwind stopped at %d (tag %d, size %d), forcing sp to %d",
				ws.sp, tag, size, target)
			ws.sp = target
			return
		}
		in.discard(false)
	}

	stackLog.Debugf("unwound to %d", target)
}

//
// Search down the stack for the innermost frame accepted by match,
// discarding disposable entries on the way.  With returning set the
// saved locals of the call being left are restored as they are passed.
// Anything else, or the bottom of the stack, raises notFound.  Returns
// the payload address of the frame, which is left on the stack
//

func (in *interp) findFrame(match func(stackTag, offset) bool, notFound string,
	returning bool) offset {

	ws := in.ws

	for {
		if ws.sp >= in.base || ws.sp >= ws.himem {
			runtimeError(notFound)
		}

		tag, _, ok := in.entryAt(ws.sp)
		if !ok {
			panic(brokenError("stack", fmt.Sprintf("bad entry at %d while looking for a frame",
				ws.sp)))
		}

		p := ws.sp + entryHeaderSize

		switch {
		case match(tag, p):
			return p

		case returning && (tag == stackLocal || tag == stackRetParm || tag == stackLocArray):
			in.discard(true)

		case stackDisposable[tag]:
			in.discard(false)

		default:
			runtimeError(notFound)
		}
	}
}

func (in *interp) findTag(tag stackTag, notFound string, returning bool) offset {

	return in.findFrame(func(t stackTag, _ offset) bool {
		return t == tag
	}, notFound, returning)
}

//
// The FOR frame for NEXT.  With a control variable the innermost loop
// over that variable is wanted and inner loops are dropped
//

func (in *interp) findFor(lv *lvalue) offset {

	return in.findFrame(func(t stackTag, p offset) bool {
		if t != stackIntFor && t != stackFloatFor {
			return false
		}
		return lv == nil || in.ws.getU32(p+4) == lv.addr
	}, ENOTINFOR, false)
}

func (in *interp) findWhile() offset {

	return in.findTag(stackWhile, ENOTINWHILE, false)
}

func (in *interp) findRepeat() offset {

	return in.findTag(stackRepeat, ENOTINREPEAT, false)
}

func (in *interp) findGosub() offset {

	return in.findTag(stackGosub, ENOGOSUB, false)
}

func (in *interp) findProc() offset {

	return in.findTag(stackProc, ENOTINPROC, true)
}

func (in *interp) findFn() offset {

	return in.findTag(stackFn, ENOTINFN, true)
}

//
// RESTORE ERROR and RESTORE DATA pop the saved state wherever it is in
// the current scope
//

func (in *interp) restoreFrame(tag stackTag) {

	in.findFrame(func(t stackTag, _ offset) bool {
		return t == tag
	}, ENOTLOCAL, false)

	in.discard(false)
}

//
// Pop the frame findFrame just returned, without its cleanup
//

func (in *interp) dropFrame() {

	_, size, ok := in.entryAt(in.ws.sp)
	if !ok {
		panic(brokenError("stack", "bad frame"))
	}

	tag := stackTag(in.ws.mem[in.ws.sp])
	if tag == stackProc || tag == stackFn {
		in.procDepth--
	}

	in.ws.sp += size
}

//
// TRACE DUMP: decode the live entries and dump them
//

type stackEntryView struct {
	Offset int
	Tag    string
	Size   int
	Detail string
}

func (in *interp) stackEntries() []stackEntryView {

	var views []stackEntryView

	ws := in.ws

	for p := ws.sp; p < ws.himem; {
		tag, size, ok := in.entryAt(p)
		if !ok {
			views = append(views, stackEntryView{Offset: int(p), Tag: "damaged"})
			break
		}

		views = append(views, stackEntryView{
			Offset: int(p),
			Tag:    stackTagNames[tag],
			Size:   int(size),
			Detail: in.entryDetail(tag, p+entryHeaderSize),
		})

		p += size
	}

	return views
}

func (in *interp) entryDetail(tag stackTag, p offset) string {

	ws := in.ws

	switch tag {
	case stackInt:
		return fmt.Sprint(ws.getInt(p))

	case stackFloat:
		return fmt.Sprint(ws.getFloat(p))

	case stackStrTemp:
		return fmt.Sprintf("%q", ws.stringAt(p))

	case stackGosub, stackProc, stackFn:
		pc, line := in.readReturn(p)
		return fmt.Sprintf("return to line %d (pc %d)", lineNumber(ws.mem, line), pc)

	case stackLocal, stackRetParm, stackLValue:
		return fmt.Sprintf("kind %d at %d", ws.getU32(p), ws.getU32(p+4))

	case stackIntFor, stackFloatFor:
		f := in.readFor(p)
		return fmt.Sprintf("variable at %d, body at line %d", f.lv.addr,
			lineNumber(ws.mem, f.bodyLine))
	}

	return ""
}

func (in *interp) dumpStack() {

	if !in.traceDump {
		return
	}

	godump.Dump(in.stackEntries())
}
