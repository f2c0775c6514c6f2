package main

import (
	"fmt"
	"github.com/tliron/commonlog"
)

var editorLog = commonlog.GetLogger("brandy.editor")

//
// Line lookups.  findLineFrom returns the first record at or after p
// whose number is >= n; the sentinel stops every search
//

func (in *interp) findLineFrom(p offset, n int) offset {

	mem := in.ws.mem

	for lineNumber(mem, p) < n {
		p = nextLine(mem, p)
	}

	return p
}

func (in *interp) findLine(base offset, n int) (offset, bool) {

	p := in.findLineFrom(base, n)

	return p, lineNumber(in.ws.mem, p) == n
}

//
// Insert a record, replacing any line with the same number.  The
// search starts at the last insertion point when the new number is not
// below it, which makes loading an ordered file linear
//

func (in *interp) insertLine(rec []byte) error {

	ws := in.ws
	n := lineNumber(rec, 0)

	if n > maxLineNo {
		return newError(ELINENO)
	}

	if len(rec) > maxLineLen {
		return newError(ELINETOOLONG)
	}

	in.clearReferences(true)

	mem := ws.mem

	start := ws.page
	if in.lastInsert >= ws.page && in.lastInsert < ws.top &&
		lineNumber(mem, in.lastInsert) <= n {
		start = in.lastInsert
	}

	p := in.findLineFrom(start, n)

	oldLen := 0
	if lineNumber(mem, p) == n {
		oldLen = lineLength(mem, p)
	}

	delta := offset(len(rec) - oldLen)

	if alignUp(ws.top+delta)+stackBuffer > ws.sp {
		return newError(ENOROOM)
	}

	copy(mem[p+offset(len(rec)):], mem[p+offset(oldLen):ws.top])
	copy(mem[p:], rec)

	ws.top += delta

	in.programChanged()
	in.lastInsert = p

	return nil
}

//
// Exact match only; a missing line is not an error
//

func (in *interp) deleteLine(n int) {

	p, ok := in.findLine(in.ws.page, n)
	if !ok {
		return
	}

	in.clearReferences(true)

	in.removeBlock(p, nextLine(in.ws.mem, p))
}

func (in *interp) deleteRange(low, high int) {

	in.clearReferences(true)

	if low > high {
		return
	}

	first := in.findLineFrom(in.ws.page, low)
	last := in.findLineFrom(first, high+1)

	if first == last {
		return
	}

	in.removeBlock(first, last)
}

func (in *interp) removeBlock(from, to offset) {

	ws := in.ws

	copy(ws.mem[from:], ws.mem[to:ws.top])
	ws.top -= to - from

	in.programChanged()
	in.lastInsert = 0
}

//
// Renumber in three passes: bind every line number reference to the
// record it names, give the records their new numbers, then write the
// new numbers back into the source stream of each bound reference.
// If the numbers would run past maxLineNo the program is renumbered
// 1,1 instead, if that fits, and ERENUMBER is still returned
//

func (in *interp) renumber(start, step int) error {

	ws := in.ws
	mem := ws.mem

	if start < 0 || start > maxLineNo || step < 1 || step > maxLineNo {
		return newError(ELINENO)
	}

	count := 0

	for p := ws.page; !atProgramEnd(mem, p); p = nextLine(mem, p) {
		count++

		for q := execStart(mem, p); mem[q] != tokEnd; {
			if mem[q] == tokXLineNum {
				n := int(ws.getU32(q + 1))
				if target, ok := in.findLine(ws.page, n); ok {
					resolveLineRef(mem, q, target)
					in.lineRefs = true
				} else {
					in.printf("Warning: line %d referenced at line %d does not exist\n",
						n, lineNumber(mem, p))
					editorLog.Warningf("renumber: no line %d (referenced at %d)",
						n, lineNumber(mem, p))
				}
			}

			size := tokenSize(mem, q)
			if size == 0 {
				return brokenError("editor", fmt.Sprintf("bad token %#x in line %d",
					mem[q], lineNumber(mem, p)))
			}
			q += offset(size)
		}
	}

	if count == 0 {
		return nil
	}

	var err error

	if start+(count-1)*step > maxLineNo {
		if count > maxLineNo {
			return newError(ERENUMBER)
		}

		editorLog.Warningf("renumber %d,%d overflows, using 1,1", start, step)

		start, step = 1, 1
		err = newError(ERENUMBER)
	}

	n := start
	for p := ws.page; !atProgramEnd(mem, p); p = nextLine(mem, p) {
		setLineNumber(mem, p, n)
		n += step
	}

	for p := ws.page; !atProgramEnd(mem, p); p = nextLine(mem, p) {
		for q := execStart(mem, p); mem[q] != tokEnd; q += offset(tokenSize(mem, q)) {
			if mem[q] == tokLineRef {
				target := ws.getU32(q + 1)
				srcOff := offset(ws.getU16(q + 5))
				ws.putU16(p+srcOff+1, lineNumber(mem, target))
			}
		}
	}

	editorLog.Debugf("renumbered %d lines from %d step %d", count, start, step)

	return err
}

//
// Demote cached references back to their unresolved form.  With lines
// set this covers line number references too, which is required before
// anything that moves records; otherwise only variable and PROC/FN
// addresses, which is enough when just the heap is reset
//

func (in *interp) clearReferences(lines bool) {

	if !in.nameRefs && !(lines && in.lineRefs) {
		return
	}

	mem := in.ws.mem

	for _, base := range in.segments() {
		for p := base; !atProgramEnd(mem, p); p = nextLine(mem, p) {
			in.clearRecordReferences(p, lines)
		}
	}

	in.clearRecordReferences(in.ws.cmdBase, lines)

	in.nameRefs = false
	if lines {
		in.lineRefs = false
	}

	editorLog.Debugf("references cleared (lines %t)", lines)
}

func (in *interp) clearRecordReferences(p offset, lines bool) {

	mem := in.ws.mem

	for q := execStart(mem, p); mem[q] != tokEnd; {
		switch mem[q] {
		case tokLineRef:
			if lines {
				invalidateLineRef(mem, q)
			}

		case tokVar, tokProcRef, tokFnRef:
			invalidateName(mem, q)
		}

		size := tokenSize(mem, q)
		if size == 0 {
			editorLog.Errorf("bad token %#x at offset %d while clearing references",
				mem[q], q)
			return
		}
		q += offset(size)
	}
}

//
// Every program edit lands here: the heap and everything in it goes
//

func (in *interp) programChanged() {

	in.clearVariables()
	in.oldValid = false
}

//
// Throw away variables, cached definitions and heap-resident libraries
//

func (in *interp) clearVariables() {

	in.clearReferences(false)

	in.ws.clearHeap()
	in.initSymbolTable()
	in.libs.dropHeap()

	in.dataLine = nilOffset
	in.dataPtr = nilOffset
	in.errh = errorHandler{}
}

//
// NEW keeps the first bytes of the old program so OLD can try to
// bring it back
//

func (in *interp) newProgram() {

	ws := in.ws

	in.clearReferences(true)

	copy(in.oldHeader[:], ws.mem[ws.page:ws.page+sentinelLen])
	hadProgram := !atProgramEnd(ws.mem, ws.page)

	ws.clearProgram()

	in.programChanged()
	in.oldValid = hadProgram
	in.lastInsert = 0
	in.badProgram = false
}

func (in *interp) oldProgram() error {

	ws := in.ws
	mem := ws.mem

	if !in.oldValid {
		return newError(EBADPROG)
	}

	copy(mem[ws.page:], in.oldHeader[:])

	end, ok := validateProgram(mem, ws.page, ws.sp)

	if !ok {
		if end+sentinelLen > ws.sp {
			end = ws.page
		}
		writeSentinel(mem, end)
		ws.top = end + sentinelLen
		in.programChanged()
		in.badProgram = true
		editorLog.Warningf("OLD: program damaged at offset %d", end)
		return newError(EBADPROG)
	}

	ws.top = end + sentinelLen
	in.programChanged()
	in.lastInsert = 0

	return nil
}

//
// Count the records of the program
//

func (in *interp) programLines() int {

	mem := in.ws.mem
	count := 0

	for p := in.ws.page; !atProgramEnd(mem, p); p = nextLine(mem, p) {
		count++
	}

	return count
}
