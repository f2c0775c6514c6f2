package main

import (
	"fmt"
	"github.com/tliron/commonlog"
	"math"
	"strconv"
	"strings"
)

var execLog = commonlog.GetLogger("brandy.exec")

//
// Run a line typed at the prompt.  A numbered line goes into the
// program (or deletes a line if there is nothing after the number);
// anything else is built into the command buffer and run from there
//

func (in *interp) executeLine(text string) error {

	n, rest, numbered, err := splitLineNumber(text)
	if err != nil {
		return err
	}

	if numbered {
		if strings.TrimSpace(rest) == "" {
			in.deleteLine(n)
			return nil
		}

		rec, err := encodeLine(n, rest)
		if err != nil {
			return err
		}

		return in.insertLine(rec)
	}

	rec, err := encodeLine(cmdLineNo, text)
	if err != nil {
		return err
	}

	ws := in.ws
	copy(ws.mem[ws.cmdBase:], rec)

	in.errh = errorHandler{}

	return in.runFrom(execStart(ws.mem, ws.cmdBase), ws.cmdBase)
}

//
// Run statements from pc until the command line finishes or something
// ends the run.  Errors are caught here: if an ON ERROR handler is
// active the stack is unwound to where the handler expects it and the
// handler's statements run; otherwise the stack is unwound to where
// the run started and the error is handed back.  END, STOP and QUIT
// come back as a *crawlout
//

func (in *interp) runFrom(pc, line offset) error {

	ws := in.ws

	in.base = ws.sp
	in.pc = pc
	in.curLine = line
	in.running = true

	defer func() {
		in.running = false
	}()

	for {
		err := protect(in.statements)
		if err == nil {
			in.unwindTo(in.base)
			return nil
		}

		switch e := err.(type) {
		case *crawlout:
			in.unwindTo(in.base)

			if !e.run {
				return e
			}

			in.clearVariables()
			in.exprDepth = 0
			in.fnReturn = false

			if in.badProgram {
				return newError(EBADPROG)
			}

			in.gotoLine(ws.page)

		case *basicError:
			in.recordError(e)

			if e.kind == kindBroken {
				execLog.Errorf("%s", e.Error())
			}

			if e.kind == kindBroken || !in.errh.set || in.errh.sp > in.base {
				in.dumpStack()
				in.unwindTo(in.base)
				return e
			}

			in.unwindTo(in.errh.sp)
			in.exprDepth = 0
			in.fnReturn = false
			in.curLine = in.errh.line
			in.pc = in.errh.pc

		default:
			return err
		}
	}
}

//
// The statement loop of an FN call.  An error is dealt with here only
// if its handler was set up inside this call (ON ERROR LOCAL below the
// restart frame); anything else goes on up to the caller
//

func (in *interp) runNested(restart offset) {

	for {
		err := protect(in.statements)
		if err == nil {
			return
		}

		e, ok := err.(*basicError)
		if !ok || e.kind == kindBroken || !in.errh.set || in.errh.sp >= restart {
			panic(err)
		}

		in.recordError(e)

		in.unwindTo(in.errh.sp)
		in.exprDepth = int(in.ws.getU32(restart + entryHeaderSize))
		in.fnReturn = false
		in.curLine = in.errh.line
		in.pc = in.errh.pc
	}
}

//
// Catch the panics the kernel raises on purpose and pass anything else
// on to call()
//

func protect(f func()) (err error) {

	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *basicError:
				err = e
			case *crawlout:
				err = e
			default:
				panic(r)
			}
		}
	}()

	f()

	return nil
}

func (in *interp) recordError(e *basicError) {

	in.errNo = e.number
	in.errMsg = e.msg
	in.errLine = 0

	if !in.ws.inCmdBuffer(in.curLine) && in.curLine >= in.ws.page {
		in.errLine = lineNumber(in.ws.mem, in.curLine)
	}

	e.line = in.errLine

	execLog.Debugf("error %d %q at line %d", e.number, e.msg, e.line)
}

//
// Control transfer helpers
//

func (in *interp) jump(rec, pc offset) {

	in.curLine = rec
	in.pc = pc
}

//
// Every change of line goes through here, so TRACE ON sees them all
//

func (in *interp) gotoLine(rec offset) {

	mem := in.ws.mem

	if in.traceExec && !atProgramEnd(mem, rec) && !in.ws.inCmdBuffer(rec) {
		in.printf("[%d]", lineNumber(mem, rec))
	}

	in.jump(rec, execStart(mem, rec))
}

func (in *interp) nextLineStart() {

	in.gotoLine(nextLine(in.ws.mem, in.curLine))
}

//
// Put pc on the NUL that ends the current line
//

func (in *interp) skipLine() {

	in.pc = nextLine(in.ws.mem, in.curLine) - 1
}

func atStatementEnd(c byte) bool {

	return c == tokEnd || c == ':' || c == tokELSE
}

//
// The record a line number token or expression refers to.  Numbers
// are looked up in the program, or library, the current line belongs
// to.  A literal number is resolved in place so the search is only
// done once
//

func (in *interp) lineTarget() offset {

	ws := in.ws
	mem := ws.mem
	p := in.pc

	switch mem[p] {
	case tokLineRef:
		in.pc += 7
		return ws.getU32(p + 1)

	case tokXLineNum:
		n := int(ws.getU32(p + 1))
		rec, ok := in.findLine(in.segmentOf(in.curLine), n)
		if !ok {
			runtimeError(ENOSUCHLINE, strconv.Itoa(n))
		}
		resolveLineRef(mem, p, rec)
		in.lineRefs = true
		in.pc += 7
		return rec
	}

	n := int(in.evalInt())

	rec, ok := in.findLine(in.segmentOf(in.curLine), n)
	if !ok {
		runtimeError(ENOSUCHLINE, strconv.Itoa(n))
	}

	return rec
}

//
// Step over one item of an ON list without evaluating it
//

func (in *interp) skipItem() {

	mem := in.ws.mem
	depth := 0

	for {
		c := mem[in.pc]

		switch {
		case c == tokEnd:
			return
		case depth == 0 && (c == ',' || c == ':' || c == tokELSE):
			return
		case c == '(':
			depth++
		case c == ')':
			depth--
		}

		in.pc += offset(tokenSize(mem, in.pc))
	}
}

func (in *interp) statementEnd() offset {

	mem := in.ws.mem
	p := in.pc

	for mem[p] != tokEnd && mem[p] != ':' {
		p += offset(tokenSize(mem, p))
	}

	return p
}

//
// The statement loop.  Runs until the end of the command line, or until
// an FN's '=' has produced a result
//

func (in *interp) statements() {

	for {
		if g.interrupted.Load() {
			g.interrupted.Store(false)
			runtimeError(EESCAPE)
		}

		tok := in.ws.mem[in.pc]

		switch tok {
		case tokEnd:
			if in.ws.inCmdBuffer(in.curLine) {
				return
			}
			in.nextLineStart()
			continue

		case ':', ' ':
			in.pc++
			continue
		}

		s.numStatements++

		in.statement(tok)

		if in.fnReturn {
			return
		}
	}
}

func (in *interp) statement(tok byte) {

	switch {
	case isVarToken(tok) || tok == '?' || tok == '!' || tok == '|' || tok == '$':
		in.assignment()

	case tok == '=':
		in.pc++
		in.executeFnReturn()

	case isProcToken(tok):
		in.executeProc()

	case tok == tokHiddenEnd:
		panic(&crawlout{})

	case isKeyword(tok):
		if tokenFlags[tok]&kwCommand != 0 {
			in.checkCommand()
		}
		in.pc++
		in.keyword(tok)

	default:
		runtimeError(EMISTAKE)
	}
}

func (in *interp) keyword(tok byte) {

	switch tok {
	case tokLET:
		in.assignment()

	case tokPRINT:
		in.executePrint()

	case tokIF:
		in.executeIf()

	case tokELSE, tokREM, tokDATA, tokDEF:
		in.skipLine()

	case tokGOTO:
		in.gotoLine(in.lineTarget())

	case tokGOSUB:
		rec := in.lineTarget()
		in.pushReturn(stackGosub, in.pc, in.curLine)
		in.gotoLine(rec)

	case tokRETURN:
		p := in.findGosub()
		pc, line := in.readReturn(p)
		in.dropFrame()
		in.jump(line, pc)

	case tokON:
		in.executeOn()

	case tokFOR:
		in.executeFor()

	case tokNEXT:
		in.executeNext()

	case tokWHILE:
		in.executeWhile()

	case tokENDWHILE:
		in.executeEndwhile()

	case tokREPEAT:
		in.pushReturn(stackRepeat, in.pc, in.curLine)

	case tokUNTIL:
		cond := in.evalTruth()
		p := in.findRepeat()
		if cond {
			in.dropFrame()
		} else {
			pc, line := in.readReturn(p)
			in.jump(line, pc)
		}

	case tokENDPROC:
		p := in.findProc()
		pc, line := in.readReturn(p)
		in.dropFrame()
		in.jump(line, pc)

	case tokLOCAL:
		in.executeLocal()

	case tokDIM:
		in.executeDim()

	case tokREAD:
		in.executeRead()

	case tokRESTORE:
		in.executeRestore()

	case tokERROR:
		n := in.evalInt()
		in.expect(',', EMISSINGCOMMA)
		msg := in.evalString()
		panic(userError(int(n), msg))

	case tokREPORT:
		in.printf("%s", in.errMsg)

	case tokEND:
		panic(&crawlout{})

	case tokSTOP:
		panic(&crawlout{stop: true, line: lineNumber(in.ws.mem, in.curLine)})

	case tokQUIT:
		code := 0
		if !atStatementEnd(in.ws.mem[in.pc]) {
			code = int(in.evalInt())
		}
		panic(&crawlout{quit: true, code: code})

	case tokRUN:
		panic(&crawlout{run: true})

	case tokCLEAR:
		if in.ws.sp != in.base {
			runtimeError(ECOMMAND)
		}
		in.clearVariables()

	case tokTIME:
		in.expect('=', EMISSINGEQ)
		in.timeOffset = g.centiTime.Load() - int64(in.evalInt())

	case tokTRACE:
		in.executeTrace()

	case tokLIBRARY, tokINSTALL:
		name := in.evalString()
		if err := in.loadLibrary(name, tok == tokINSTALL); err != nil {
			panic(err)
		}

	case tokLIST:
		in.executeList()

	case tokNEW:
		in.newProgram()
		in.programName = ""

	case tokOLD:
		if err := in.oldProgram(); err != nil {
			panic(err)
		}

	case tokRENUMBER:
		start, step := 10, 10
		if !atStatementEnd(in.ws.mem[in.pc]) {
			start = int(in.evalInt())
			if in.ws.mem[in.pc] == ',' {
				in.pc++
				step = int(in.evalInt())
			}
		}
		if err := in.renumber(start, step); err != nil {
			panic(err)
		}

	case tokDELETE:
		low := int(in.evalInt())
		high := low
		if in.ws.mem[in.pc] == ',' {
			in.pc++
			high = int(in.evalInt())
		}
		in.deleteRange(low, high)

	case tokLOAD:
		if err := in.loadFile(in.evalString()); err != nil {
			panic(err)
		}

	case tokSAVE:
		name := in.programName
		if !atStatementEnd(in.ws.mem[in.pc]) {
			name = in.evalString()
		}
		if err := in.saveFile(name); err != nil {
			panic(err)
		}

	case tokHELP:
		in.executeHelp()

	default:
		runtimeError(EMISTAKE)
	}
}

//
// Commands change the program or the workspace under whatever is
// running, so they are only allowed from the prompt
//

func (in *interp) checkCommand() {

	if !in.ws.inCmdBuffer(in.curLine) || in.ws.sp != in.base {
		runtimeError(ECOMMAND)
	}
}

//
// Assignment.  += and -= are accepted as well as =
//

func (in *interp) assignment() {

	ws := in.ws

	lv := in.parseLValue(true)

	op := ws.mem[in.pc]
	if (op == '+' || op == '-') && ws.mem[in.pc+1] == '=' {
		in.pc += 2
		in.pushValue(in.loadLValue(lv))
		in.expression()
		in.apply(op)
		in.storeLValue(lv, in.popValue())
		return
	}

	in.expect('=', EMISSINGEQ)

	in.storeLValue(lv, in.evalValue())
}

//
// '=' ends an FN.  The result is taken before the FN's locals are
// restored, since it may well be one of them
//

func (in *interp) executeFnReturn() {

	v := in.evalValue()

	p := in.findFn()
	pc, line := in.readReturn(p)
	in.dropFrame()
	in.jump(line, pc)

	in.fnValue = v
	in.fnReturn = true
}

//
// PROC and FN parameters.  Formal parameters are parsed at the DEF,
// actual parameters at the call; a RETURN parameter passes the
// caller's variable, which gets the parameter's final value back
//

type formal struct {
	lv  lvalue
	ret bool
}

type actual struct {
	v    value
	dest lvalue
}

func (in *interp) readFormals(rec, defpc offset) ([]formal, offset) {

	savePC, saveLine := in.pc, in.curLine
	in.jump(rec, defpc)

	var formals []formal

	if in.ws.mem[in.pc] == '(' {
		in.pc++

		for {
			f := formal{}

			if in.ws.mem[in.pc] == tokRETURN {
				f.ret = true
				in.pc++
			}

			if !isVarToken(in.ws.mem[in.pc]) {
				runtimeError(ESYNTAX)
			}

			f.lv = in.parseLValue(true)
			formals = append(formals, f)

			if in.ws.mem[in.pc] == ',' {
				in.pc++
				continue
			}

			in.expect(')', EMISSINGRPAREN)
			break
		}
	}

	body := in.pc
	in.jump(saveLine, savePC)

	return formals, body
}

func (in *interp) readActuals(formals []formal) []actual {

	n := 0

	if in.ws.mem[in.pc] == '(' {
		in.pc++

		for {
			if n >= len(formals) {
				runtimeError(EARGS)
			}

			if formals[n].ret {
				in.pushLValue(in.parseLValue(true))
			} else {
				in.expression()
			}
			n++

			if in.ws.mem[in.pc] == ',' {
				in.pc++
				continue
			}

			in.expect(')', EMISSINGRPAREN)
			break
		}
	}

	if n != len(formals) {
		runtimeError(EARGS)
	}

	actuals := make([]actual, n)

	for i := n - 1; i >= 0; i-- {
		if formals[i].ret {
			lv := in.popLValue()
			actuals[i] = actual{v: in.loadLValue(lv), dest: lv}
		} else {
			actuals[i] = actual{v: in.popValue()}
		}
	}

	return actuals
}

func (in *interp) bindFormals(formals []formal, actuals []actual) {

	for i, f := range formals {
		var dest *lvalue
		if f.ret {
			d := actuals[i].dest
			dest = &d
		}

		in.saveLocal(f.lv, dest)
		in.storeLValue(f.lv, actuals[i].v)
	}
}

func (in *interp) executeProc() {

	rec, defpc := in.procToken()

	formals, body := in.readFormals(rec, defpc)
	actuals := in.readActuals(formals)

	in.pushReturn(stackProc, in.pc, in.curLine)
	in.bindFormals(formals, actuals)

	in.jump(rec, body)
}

//
// IF is confined to one line.  A false condition carries on after the
// first ELSE on the line, if there is one
//

func (in *interp) executeIf() {

	ws := in.ws

	cond := in.evalTruth()

	if ws.mem[in.pc] == tokTHEN {
		in.pc++
	}

	if cond {
		if isLineToken(ws.mem[in.pc]) {
			in.gotoLine(in.lineTarget())
		}
		return
	}

	mem := ws.mem
	for mem[in.pc] != tokEnd && mem[in.pc] != tokELSE {
		in.pc += offset(tokenSize(mem, in.pc))
	}

	if mem[in.pc] == tokELSE {
		in.pc++
		if isLineToken(mem[in.pc]) {
			in.gotoLine(in.lineTarget())
		}
	}
}

//
// ON expr GOTO/GOSUB list [ELSE ...] and ON ERROR
//

func (in *interp) executeOn() {

	ws := in.ws

	if ws.mem[in.pc] == tokERROR {
		in.pc++
		in.executeOnError()
		return
	}

	n := int(in.evalInt())

	kind := ws.mem[in.pc]
	if kind != tokGOTO && kind != tokGOSUB {
		runtimeError(ESYNTAX)
	}
	in.pc++

	target := nilOffset

	for i := 1; ; i++ {
		if i == n {
			target = in.lineTarget()
		} else {
			in.skipItem()
		}

		if ws.mem[in.pc] != ',' {
			break
		}
		in.pc++
	}

	if target == nilOffset {
		if ws.mem[in.pc] != tokELSE {
			runtimeError(EONRANGE)
		}
		in.pc++
		if isLineToken(ws.mem[in.pc]) {
			in.gotoLine(in.lineTarget())
		}
		return
	}

	if kind == tokGOSUB {
		in.pushReturn(stackGosub, in.statementEnd(), in.curLine)
	}

	in.gotoLine(target)
}

//
// The handler is the rest of the line.  A LOCAL handler keeps the
// stack as it is now; any other unwinds to where the run started
//

func (in *interp) executeOnError() {

	switch in.ws.mem[in.pc] {
	case tokOFF:
		in.pc++
		in.errh = errorHandler{}
		return

	case tokLOCAL:
		in.pc++
		in.errh = errorHandler{set: true, local: true, pc: in.pc, line: in.curLine,
			sp: in.ws.sp}

	default:
		in.errh = errorHandler{set: true, pc: in.pc, line: in.curLine, sp: in.base}
	}

	in.skipLine()
}

//
// FOR loops always run their body at least once
//

func (in *interp) executeFor() {

	lv := in.parseLValue(true)
	if lv.kind != lvInt && lv.kind != lvFloat {
		runtimeError(ETYPE)
	}

	in.expect('=', EMISSINGEQ)
	start := in.evalNumber()

	in.expect(tokTO, EMISSINGTO)
	limit := in.evalNumber()

	step := value{kind: valInt, i: 1}
	if in.ws.mem[in.pc] == tokSTEP {
		in.pc++
		step = in.evalNumber()
	}

	in.storeLValue(lv, start)

	f := forFrame{lv: lv, bodyPC: in.pc, bodyLine: in.curLine}

	if lv.kind == lvInt {
		f.isInt = true
		f.ilimit = toInt(limit)
		f.istep = toInt(step)
	} else {
		f.flimit = toFloat(limit)
		f.fstep = toFloat(step)
	}

	in.pushFor(f)
}

func (in *interp) executeNext() {

	ws := in.ws

	for {
		var lv *lvalue

		if c := ws.mem[in.pc]; isVarToken(c) {
			l := in.parseLValue(false)
			lv = &l
		}

		p := in.findFor(lv)
		f := in.readFor(p)

		var done bool

		if f.isInt {
			v := int64(ws.getInt(f.lv.addr)) + int64(f.istep)
			if v > math.MaxInt32 || v < math.MinInt32 {
				done = true
			} else {
				ws.putInt(f.lv.addr, int32(v))
				if f.istep >= 0 {
					done = v > int64(f.ilimit)
				} else {
					done = v < int64(f.ilimit)
				}
			}
		} else {
			v := ws.getFloat(f.lv.addr) + f.fstep
			ws.putFloat(f.lv.addr, v)
			if f.fstep >= 0 {
				done = v > f.flimit
			} else {
				done = v < f.flimit
			}
		}

		if !done {
			in.jump(f.bodyLine, f.bodyPC)
			return
		}

		in.dropFrame()

		if ws.mem[in.pc] != ',' {
			return
		}
		in.pc++
	}
}

//
// WHILE keeps the position of its condition in the frame; ENDWHILE
// goes back and evaluates it again
//

func (in *interp) executeWhile() {

	cond := in.pc
	line := in.curLine

	if in.evalTruth() {
		in.pushReturn(stackWhile, cond, line)
		return
	}

	in.skipToEndwhile()
}

func (in *interp) executeEndwhile() {

	p := in.findWhile()
	cond, line := in.readReturn(p)

	pc, cur := in.pc, in.curLine

	in.jump(line, cond)
	if in.evalTruth() {
		return
	}

	in.dropFrame()
	in.jump(cur, pc)
}

//
// Find the ENDWHILE that matches the WHILE just run, counting nested
// loops on the way
//

func (in *interp) skipToEndwhile() {

	mem := in.ws.mem
	depth := 1

	rec := in.curLine
	p := in.pc

	for {
		for mem[p] != tokEnd {
			switch mem[p] {
			case tokWHILE:
				depth++

			case tokENDWHILE:
				depth--
				if depth == 0 {
					in.jump(rec, p+1)
					return
				}

			case tokREM, tokDATA:
				p = nextLine(mem, rec) - 1
				continue
			}

			p += offset(tokenSize(mem, p))
		}

		if in.ws.inCmdBuffer(rec) {
			runtimeError(ENOENDWHILE)
		}

		rec = nextLine(mem, rec)
		if atProgramEnd(mem, rec) {
			runtimeError(ENOENDWHILE)
		}

		p = execStart(mem, rec)
	}
}

//
// LOCAL ERROR and LOCAL DATA save state that RESTORE or the end of the
// enclosing call puts back.  LOCAL variables need a PROC or FN
//

func (in *interp) executeLocal() {

	switch in.ws.mem[in.pc] {
	case tokERROR:
		in.pc++
		in.pushErrorFrame()
		return

	case tokDATA:
		in.pc++
		in.pushDataFrame()
		return
	}

	runtimeCheck(in.procDepth != 0, ENOTLOCAL)

	for {
		in.saveLocal(in.parseLValue(true), nil)

		if in.ws.mem[in.pc] != ',' {
			return
		}
		in.pc++
	}
}

//
// DIM A(n,...) makes an array; DIM P% n reserves n+1 bytes of heap
// and puts their address in P%
//

func (in *interp) executeDim() {

	ws := in.ws

	for {
		if !isVarToken(ws.mem[in.pc]) {
			runtimeError(EBADDIM)
		}

		slot, _, kind := in.variable(true)

		switch {
		case isArrayVar(kind):
			in.dimArray(slot, kind, in.subscripts())

		case kind == varString:
			runtimeError(EBADDIM)

		default:
			n := in.evalInt()
			if n < -1 {
				runtimeError(EBADDIM)
			}
			p, err := ws.allocate(int(n) + 1)
			if err != nil {
				panic(err)
			}
			ws.zero(p, int(n)+1)
			in.storeLValue(lvalue{kind: lvKindOf(kind), addr: slot},
				value{kind: valInt, i: int32(p)})
		}

		if ws.mem[in.pc] != ',' {
			return
		}
		in.pc++
	}
}

//
// DATA.  dataPtr points into the source stream of dataLine at the
// next item.  When it is nil the next DATA statement is looked for,
// starting at dataLine (or the start of the program)
//

func (in *interp) executeRead() {

	for {
		lv := in.parseLValue(true)
		item := in.nextDataItem()

		if lv.kind == lvString || lv.kind == lvIndString {
			in.storeLValue(lv, value{kind: valString, s: item})
		} else {
			in.storeLValue(lv, valNumber(item))
		}

		if in.ws.mem[in.pc] != ',' {
			return
		}
		in.pc++
	}
}

//
// Where the items of the DATA statement in rec start, or nilOffset
//

func dataStart(mem []byte, rec offset) offset {

	found := false

	for q := execStart(mem, rec); mem[q] != tokEnd; q += offset(tokenSize(mem, q)) {
		if mem[q] == tokREM {
			return nilOffset
		}
		if mem[q] == tokDATA {
			found = true
			break
		}
	}

	if !found {
		return nilOffset
	}

	end := execStart(mem, rec)
	quoted := false

	for q := sourceStart(rec); q < end; {
		switch {
		case mem[q] == '"':
			quoted = !quoted

		case quoted:

		case mem[q] == tokLineNum:
			q += 3
			continue

		case mem[q] == tokDATA:
			return q + 1
		}
		q++
	}

	return nilOffset
}

func (in *interp) nextDataItem() string {

	ws := in.ws
	mem := ws.mem

	if in.dataPtr == nilOffset {
		rec := in.dataLine
		if rec == nilOffset {
			rec = ws.page
		}

		for {
			if atProgramEnd(mem, rec) {
				runtimeError(EOUTOFDATA)
			}
			if p := dataStart(mem, rec); p != nilOffset {
				in.dataLine = rec
				in.dataPtr = p
				break
			}
			rec = nextLine(mem, rec)
		}
	}

	end := execStart(mem, in.dataLine)
	p := in.dataPtr

	for p < end && mem[p] == ' ' {
		p++
	}

	var sb strings.Builder

	if p < end && mem[p] == '"' {
		p++
		for p < end {
			if mem[p] == '"' {
				if p+1 < end && mem[p+1] == '"' {
					sb.WriteByte('"')
					p += 2
					continue
				}
				p++
				break
			}
			sb.WriteByte(mem[p])
			p++
		}
		for p < end && mem[p] != ',' {
			p++
		}
	} else {
		for p < end && mem[p] != ',' {
			sb.WriteByte(mem[p])
			p++
		}
	}

	if p < end {
		in.dataPtr = p + 1
	} else {
		in.dataLine = nextLine(mem, in.dataLine)
		in.dataPtr = nilOffset
	}

	return sb.String()
}

func (in *interp) executeRestore() {

	switch in.ws.mem[in.pc] {
	case tokERROR:
		in.pc++
		in.restoreFrame(stackError)

	case tokDATA:
		in.pc++
		in.restoreFrame(stackData)

	case tokEnd, ':', tokELSE:
		in.dataLine = nilOffset
		in.dataPtr = nilOffset

	default:
		in.dataLine = in.lineTarget()
		in.dataPtr = nilOffset
	}
}

//
// PRINT items separated by ; (nothing), , (next zone) and ' (newline).
// A trailing ; or , stops the newline
//

func (in *interp) executePrint() {

	mem := in.ws.mem
	newline := true

	for {
		c := mem[in.pc]

		switch {
		case atStatementEnd(c):
			if newline {
				in.printf("\n")
			}
			return

		case c == ';':
			in.pc++
			newline = false

		case c == ',':
			in.pc++
			n := zoneWidth - in.column%zoneWidth
			if w := in.con.width(); w > 0 && in.column+n >= w {
				in.printf("\n")
			} else {
				in.printf("%s", strings.Repeat(" ", n))
			}
			newline = false

		case c == '\'':
			in.pc++
			in.printf("\n")
			newline = true

		default:
			v := in.evalValue()
			if v.kind == valString {
				in.printf("%s", v.s)
			} else {
				in.printf("%s", formatNumber(v))
			}
			newline = true
		}
	}
}

//
// TRACE ON, TRACE OFF, TRACE DUMP (stack dumps on error) and TRACE
// STATS
//

func (in *interp) executeTrace() {

	ws := in.ws
	c := ws.mem[in.pc]

	switch {
	case c == tokON:
		in.pc++
		in.traceExec = true

	case c == tokOFF:
		in.pc++
		in.traceExec = false
		in.traceDump = false

	case isVarToken(c) && tokenName(ws.mem, in.pc) == "DUMP":
		in.pc += offset(tokenSize(ws.mem, in.pc))
		in.traceDump = true

	case isVarToken(c) && tokenName(ws.mem, in.pc) == "STATS":
		in.pc += offset(tokenSize(ws.mem, in.pc))
		in.printStats = true

	default:
		runtimeError(ESYNTAX)
	}

	execLog.Debugf("trace exec %s dump %s stats %s", switchSetting(in.traceExec),
		switchSetting(in.traceDump), switchSetting(in.printStats))
}

//
// LIST [from][,to].  A single number lists just that line
//

func (in *interp) executeList() {

	ws := in.ws

	low, high := 0, maxLineNo

	if c := ws.mem[in.pc]; !atStatementEnd(c) && c != ',' {
		low = int(in.evalInt())
		high = low
	}

	if ws.mem[in.pc] == ',' {
		in.pc++
		high = maxLineNo
		if !atStatementEnd(ws.mem[in.pc]) {
			high = int(in.evalInt())
		}
	}

	mem := ws.mem

	for p := in.findLineFrom(ws.page, low); !atProgramEnd(mem, p); p = nextLine(mem, p) {
		if lineNumber(mem, p) > high {
			break
		}

		if g.interrupted.Load() {
			g.interrupted.Store(false)
			runtimeError(EESCAPE)
		}

		in.printf("%s\n", listLine(mem, p, true))
	}
}

//
// LOAD replaces the program.  Whatever went wrong, the workspace is
// left holding either the new program or nothing
//

func (in *interp) loadFile(name string) error {

	if !fileExists(name) && fileExists(name+basFileSuffix) {
		name += basFileSuffix
	}

	f, err := openFileFull(name, IOREAD)
	if err != nil {
		return err
	}
	defer closeFile(&f)

	in.newProgram()

	_, info, err := in.loadProgram(f.reader)
	if err != nil {
		in.newProgram()
		in.oldValid = false
		return err
	}

	in.programName = name
	in.quitAtEnd = in.quitAtEnd || info.quitAtEnd

	execLog.Infof("loaded %s: %s", name, pluralize("line", info.lines))

	return nil
}

func (in *interp) saveFile(name string) error {

	if name == "" {
		return newError(EFILENOTFOUND, "(no file name)")
	}

	f, err := openFileFull(name, IOWRITE)
	if err != nil {
		return err
	}

	if err := in.saveText(f.writer); err != nil {
		closeFile(&f)
		return err
	}

	if err := closeFile(&f); err != nil {
		return err
	}

	in.programName = name

	return nil
}

//
// Describe an error the way the prompt shows it
//

func errorReport(err error) string {

	switch e := err.(type) {
	case *basicError:
		if e.line > 0 {
			return fmt.Sprintf("%s at line %d", e.Error(), e.line)
		}
		return e.Error()

	case *crawlout:
		return e.Error()
	}

	return err.Error()
}
