package main

import (
	"math"
	"strconv"
	"strings"
)

//
// Expressions are evaluated straight off the executable stream.
// Operands go on the workspace stack; pending operators wait in a
// small fixed operator stack and are applied as soon as an operator of
// the same or lower priority turns up.  Before starting we make sure
// the workspace stack has room for a full operator stack's worth of
// operands, so individual operand pushes only need to stay clear of
// the heap
//

func priority(op byte) int {

	switch op {
	case tokOR, tokEOR:
		return 1

	case tokAND:
		return 2

	case '=', '<', '>', tokLE, tokGE, tokNE:
		return 3

	case '+', '-':
		return 4

	case '*', '/', tokDIV, tokMOD:
		return 5

	case '^':
		return 6
	}

	return 0
}

func (in *interp) expression() {

	var ops [opstackSize]byte

	in.checkStack(opstackSize * opstackEntrySize)

	in.exprDepth++

	n := 0

	in.factor()

	for {
		op := in.ws.mem[in.pc]

		prec := priority(op)
		if prec == 0 {
			break
		}

		in.pc++

		for n > 0 && priority(ops[n-1]) >= prec {
			n--
			in.apply(ops[n])
		}

		if n == opstackSize {
			runtimeError(ESTACKFULL)
		}

		ops[n] = op
		n++

		in.factor()
	}

	for n > 0 {
		n--
		in.apply(ops[n])
	}

	in.exprDepth--
}

func (in *interp) evalValue() value {

	in.expression()

	return in.popValue()
}

func (in *interp) evalInt() int32 {

	in.expression()

	return in.popInt()
}

func (in *interp) evalFloat() float64 {

	in.expression()

	return in.popFloat()
}

func (in *interp) evalNumber() value {

	in.expression()

	return in.popNumber()
}

func (in *interp) evalString() string {

	in.expression()

	return in.popString()
}

func (in *interp) evalTruth() bool {

	v := in.evalNumber()
	if v.kind == valInt {
		return v.i != 0
	}

	return v.f != 0
}

func (in *interp) expect(c byte, msg string) {

	if in.ws.mem[in.pc] != c {
		runtimeError(msg)
	}

	in.pc++
}

//
// Numeric conversions.  Floats are truncated towards zero when an
// integer is needed
//

func toInt(v value) int32 {

	switch v.kind {
	case valInt:
		return v.i

	case valFloat:
		t := math.Trunc(v.f)
		if math.IsNaN(t) || t > math.MaxInt32 || t < math.MinInt32 {
			runtimeError(ETOOBIG)
		}
		return int32(t)
	}

	runtimeError(ETYPE)

	return 0
}

func toFloat(v value) float64 {

	switch v.kind {
	case valInt:
		return float64(v.i)

	case valFloat:
		return v.f
	}

	runtimeError(ETYPE)

	return 0
}

func intOrFloat(n int64) value {

	if n > math.MaxInt32 || n < math.MinInt32 {
		return value{kind: valFloat, f: float64(n)}
	}

	return value{kind: valInt, i: int32(n)}
}

func checkFloat(f float64) float64 {

	if math.IsInf(f, 0) {
		runtimeError(ETOOBIG)
	}

	if math.IsNaN(f) {
		runtimeError(ELOGRANGE)
	}

	return f
}

//
// Apply a binary operator to the top two operands
//

func (in *interp) apply(op byte) {

	rhs := in.popValue()
	lhs := in.popValue()

	if lhs.kind == valArray || rhs.kind == valArray {
		runtimeError(ETYPE)
	}

	if lhs.kind == valString || rhs.kind == valString {
		if lhs.kind != rhs.kind {
			runtimeError(ETYPE)
		}
		in.applyString(op, lhs.s, rhs.s)
		return
	}

	bothInt := lhs.kind == valInt && rhs.kind == valInt

	switch op {
	case '+', '-', '*':
		if bothInt {
			a, b := int64(lhs.i), int64(rhs.i)
			switch op {
			case '+':
				in.pushValue(intOrFloat(a + b))
			case '-':
				in.pushValue(intOrFloat(a - b))
			default:
				in.pushValue(intOrFloat(a * b))
			}
			return
		}

		a, b := toFloat(lhs), toFloat(rhs)
		switch op {
		case '+':
			in.pushFloat(checkFloat(a + b))
		case '-':
			in.pushFloat(checkFloat(a - b))
		default:
			in.pushFloat(checkFloat(a * b))
		}

	case '/':
		b := toFloat(rhs)
		if b == 0 {
			runtimeError(EDIVZERO)
		}
		in.pushFloat(checkFloat(toFloat(lhs) / b))

	case '^':
		in.pushFloat(checkFloat(math.Pow(toFloat(lhs), toFloat(rhs))))

	case tokDIV, tokMOD:
		a, b := int64(toInt(lhs)), int64(toInt(rhs))
		if b == 0 {
			runtimeError(EDIVZERO)
		}
		if op == tokDIV {
			in.pushValue(intOrFloat(a / b))
		} else {
			in.pushValue(intOrFloat(a % b))
		}

	case tokAND:
		in.pushInt(toInt(lhs) & toInt(rhs))

	case tokOR:
		in.pushInt(toInt(lhs) | toInt(rhs))

	case tokEOR:
		in.pushInt(toInt(lhs) ^ toInt(rhs))

	default:
		var cmp int
		if bothInt {
			cmp = compareInts(lhs.i, rhs.i)
		} else {
			cmp = compareFloats(toFloat(lhs), toFloat(rhs))
		}
		in.pushBool(compareResult(op, cmp))
	}
}

func (in *interp) applyString(op byte, a, b string) {

	if op == '+' {
		if len(a)+len(b) > maxStringLen {
			runtimeError(ESTRINGLEN)
		}
		in.pushString(a + b)
		return
	}

	if priority(op) != 3 {
		runtimeError(ETYPE)
	}

	in.pushBool(compareResult(op, strings.Compare(a, b)))
}

func compareInts(a, b int32) int {

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

func compareFloats(a, b float64) int {

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

func compareResult(op byte, cmp int) bool {

	switch op {
	case '=':
		return cmp == 0
	case '<':
		return cmp < 0
	case '>':
		return cmp > 0
	case tokLE:
		return cmp <= 0
	case tokGE:
		return cmp >= 0
	}

	return cmp != 0
}

//
// Operands: constants, variables, bracketed expressions, unary
// operators, built in functions and FN calls
//

func (in *interp) factor() {

	ws := in.ws
	p := in.pc
	tok := ws.mem[p]

	switch {
	case tok == tokIntCon:
		in.pushInt(ws.getInt(p + 1))
		in.pc += 5

	case tok == tokFloatCon:
		in.pushFloat(ws.getFloat(p + 1))
		in.pc += 9

	case tok == tokStrCon:
		n := ws.getU16(p + 1)
		in.pushStringRef(p+3, n)
		in.pc += 3 + offset(n)

	case isVarToken(tok) || tok == '?' || tok == '!' || tok == '|' || tok == '$':
		in.pushLValueContents(in.parseLValue(false))

	case isFnToken(tok):
		in.callFn()

	case tok == '(':
		in.pc++
		in.expression()
		in.expect(')', EMISSINGRPAREN)

	case tok == '-':
		in.pc++
		in.factor()
		v := in.popNumber()
		if v.kind == valInt {
			in.pushValue(intOrFloat(-int64(v.i)))
		} else {
			in.pushFloat(-v.f)
		}

	case tok == '+':
		in.pc++
		in.factor()
		in.pushValue(in.popNumber())

	case isKeyword(tok):
		in.pc++
		in.function(tok)

	default:
		runtimeError(ESYNTAX)
	}
}

//
// Strings are pushed as a reference to the variable's buffer rather
// than copied
//

func (in *interp) pushLValueContents(lv lvalue) {

	switch {
	case lv.kind == lvString:
		ptr, length, _ := in.ws.readDesc(lv.addr)
		in.pushStringRef(ptr, length)

	default:
		in.pushValue(in.loadLValue(lv))
	}
}

//
// Functions without a bracket take a single factor as their argument,
// so SQR 2 and SQR(2) both work.  Those whose keyword ends in a
// bracket take an argument list
//

func (in *interp) function(tok byte) {

	ws := in.ws

	switch tok {
	case tokTRUE:
		in.pushInt(boolTrue)

	case tokFALSE:
		in.pushInt(boolFalse)

	case tokPI:
		in.pushFloat(math.Pi)

	case tokERR:
		in.pushInt(int32(in.errNo))

	case tokERL:
		in.pushInt(int32(in.errLine))

	case tokTIME:
		in.pushInt(int32(g.centiTime.Load() - in.timeOffset))

	case tokPAGE:
		in.pushInt(int32(ws.page))

	case tokTOP:
		in.pushInt(int32(ws.top))

	case tokLOMEM:
		in.pushInt(int32(ws.lomem))

	case tokHIMEM:
		in.pushInt(int32(ws.himem))

	case tokNOT:
		in.factor()
		in.pushInt(^in.popInt())

	case tokRND:
		in.rnd()

	case tokABS:
		in.factor()
		v := in.popNumber()
		if v.kind == valInt {
			in.pushValue(intOrFloat(abs64(int64(v.i))))
		} else {
			in.pushFloat(math.Abs(v.f))
		}

	case tokINT:
		in.factor()
		v := in.popNumber()
		if v.kind == valInt {
			in.pushInt(v.i)
		} else {
			f := math.Floor(v.f)
			if f >= math.MinInt32 && f <= math.MaxInt32 {
				in.pushInt(int32(f))
			} else {
				in.pushFloat(f)
			}
		}

	case tokSGN:
		in.factor()
		v := in.popNumber()
		if v.kind == valInt {
			in.pushInt(int32(compareInts(v.i, 0)))
		} else {
			in.pushInt(int32(compareFloats(v.f, 0)))
		}

	case tokSQR:
		in.factor()
		f := in.popFloat()
		if f < 0 {
			runtimeError(ENEGROOT)
		}
		in.pushFloat(math.Sqrt(f))

	case tokSIN, tokCOS, tokTAN, tokATN, tokEXP, tokLN, tokLOG:
		in.factor()
		in.pushFloat(mathFunction(tok, in.popFloat()))

	case tokLEN:
		in.factor()
		in.pushInt(int32(len(in.popString())))

	case tokASC:
		in.factor()
		str := in.popString()
		if str == "" {
			in.pushInt(-1)
		} else {
			in.pushInt(int32(str[0]))
		}

	case tokCHRS:
		in.factor()
		in.pushString(string([]byte{byte(in.popInt())}))

	case tokSTRS:
		in.factor()
		in.pushString(formatNumber(in.popNumber()))

	case tokVAL:
		in.factor()
		in.pushValue(valNumber(in.popString()))

	case tokLEFTS, tokRIGHTS:
		str := in.evalString()
		n := len(str) - 1
		if in.ws.mem[in.pc] == ',' {
			in.pc++
			n = int(in.evalInt())
		}
		in.expect(')', EMISSINGRPAREN)
		n = max(0, min(n, len(str)))
		if tok == tokLEFTS {
			in.pushString(str[:n])
		} else {
			in.pushString(str[len(str)-n:])
		}

	case tokMIDS:
		str := in.evalString()
		in.expect(',', EMISSINGCOMMA)
		start := int(in.evalInt())
		n := maxStringLen
		if in.ws.mem[in.pc] == ',' {
			in.pc++
			n = int(in.evalInt())
		}
		in.expect(')', EMISSINGRPAREN)
		in.pushString(midString(str, start, n))

	case tokINSTR:
		str := in.evalString()
		in.expect(',', EMISSINGCOMMA)
		sub := in.evalString()
		start := 1
		if in.ws.mem[in.pc] == ',' {
			in.pc++
			start = int(in.evalInt())
		}
		in.expect(')', EMISSINGRPAREN)
		in.pushInt(int32(instr(str, sub, start)))

	case tokSTRINGS:
		n := int(in.evalInt())
		in.expect(',', EMISSINGCOMMA)
		str := in.evalString()
		in.expect(')', EMISSINGRPAREN)
		if n < 0 {
			n = 0
		}
		if n*len(str) > maxStringLen {
			runtimeError(ESTRINGLEN)
		}
		in.pushString(strings.Repeat(str, n))

	default:
		runtimeError(ESYNTAX)
	}
}

func abs64(n int64) int64 {

	if n < 0 {
		return -n
	}

	return n
}

func mathFunction(tok byte, f float64) float64 {

	switch tok {
	case tokSIN:
		return math.Sin(f)

	case tokCOS:
		return math.Cos(f)

	case tokTAN:
		return checkFloat(math.Tan(f))

	case tokATN:
		return math.Atan(f)

	case tokEXP:
		return checkFloat(math.Exp(f))

	case tokLN, tokLOG:
		if f <= 0 {
			runtimeError(ELOGRANGE)
		}
		if tok == tokLN {
			return math.Log(f)
		}
		return math.Log10(f)
	}

	runtimeError(ESYNTAX)

	return 0
}

func midString(str string, start, n int) string {

	if start < 1 {
		start = 1
	}

	if start > len(str) || n <= 0 {
		return ""
	}

	end := min(len(str), start-1+n)

	return str[start-1 : end]
}

//
// Position of sub in str, searching from start (1 based); 0 if absent
//

func instr(str, sub string, start int) int {

	if start < 1 {
		start = 1
	}

	if start > len(str)+1 {
		return 0
	}

	i := strings.Index(str[start-1:], sub)
	if i < 0 {
		return 0
	}

	return start + i
}

//
// RND           random 32 bit integer
// RND(n), n<0   reseed and return n
// RND(0)        last value as a fraction
// RND(1)        fraction in [0, 1)
// RND(n), n>1   integer in 1..n
//

func (in *interp) nextRandom() uint32 {

	in.rndSeed = in.rndSeed*1664525 + 1013904223

	return in.rndSeed
}

func (in *interp) rnd() {

	if in.ws.mem[in.pc] != '(' {
		in.pushInt(int32(in.nextRandom()))
		return
	}

	in.pc++
	n := in.evalInt()
	in.expect(')', EMISSINGRPAREN)

	switch {
	case n < 0:
		in.rndSeed = uint32(n)
		in.pushInt(n)

	case n == 0:
		in.pushFloat(float64(in.rndSeed) / 4294967296.0)

	case n == 1:
		in.pushFloat(float64(in.nextRandom()) / 4294967296.0)

	default:
		in.pushInt(int32(in.nextRandom()%uint32(n)) + 1)
	}
}

//
// Number formatting for PRINT and STR$: integers as they are, floats
// with up to nine significant figures and a bare exponent (1E10)
//

func formatNumber(v value) string {

	if v.kind == valInt {
		return strconv.Itoa(int(v.i))
	}

	str := strconv.FormatFloat(v.f, 'G', 9, 64)

	mant, exp, found := strings.Cut(str, "E")
	if !found {
		return str
	}

	sign := ""
	if strings.HasPrefix(exp, "-") {
		sign = "-"
	}

	exp = strings.TrimLeft(exp, "+-0")
	if exp == "" {
		exp = "0"
	}

	return mant + "E" + sign + exp
}

func formatValue(v value) string {

	switch v.kind {
	case valString:
		return strconv.Quote(v.s)

	case valArray:
		return "array"
	}

	return formatNumber(v)
}

//
// VAL: the longest leading number in str, or 0
//

func valNumber(str string) value {

	str = strings.TrimLeft(str, " ")

	i := 0
	if i < len(str) && (str[i] == '+' || str[i] == '-') {
		i++
	}

	digits := i
	for i < len(str) && isDigit(str[i]) {
		i++
	}

	isFloat := false

	if i < len(str) && str[i] == '.' {
		isFloat = true
		i++
		for i < len(str) && isDigit(str[i]) {
			i++
		}
	}

	if i == digits || (isFloat && i == digits+1) {
		return value{kind: valInt}
	}

	if i < len(str) && (str[i] == 'E' || str[i] == 'e') {
		j := i + 1
		if j < len(str) && (str[j] == '+' || str[j] == '-') {
			j++
		}
		if j < len(str) && isDigit(str[j]) {
			isFloat = true
			for j < len(str) && isDigit(str[j]) {
				j++
			}
			i = j
		}
	}

	text := str[:i]

	if !isFloat {
		if n, err := strconv.ParseInt(text, 10, 32); err == nil {
			return value{kind: valInt, i: int32(n)}
		}
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		runtimeError(ETOOBIG)
	}

	return value{kind: valFloat, f: f}
}

//
// FN calls.  The arguments are evaluated in the caller, then the call
// is run to completion by a nested statement loop.  Below the FN frame
// sit an operator stack frame and a restart frame marking how far an
// error may unwind before it has to leave the nested loop
//

func (in *interp) callFn() {

	rec, defpc := in.procToken()

	formals, body := in.readFormals(rec, defpc)
	actuals := in.readActuals(formals)

	in.pushOpStack()
	restart := in.pushRestart(in.exprDepth)
	in.pushReturn(stackFn, in.pc, in.curLine)

	in.bindFormals(formals, actuals)

	in.curLine = rec
	in.pc = body

	in.runNested(restart)

	basicAssert(in.fnReturn, "exec", "FN body finished without returning a value")

	v := in.fnValue
	in.fnReturn = false
	in.fnValue = value{}

	basicAssert(in.topTag() == stackRestart, "exec", "FN return left the stack unbalanced")
	in.dropFrame()

	basicAssert(in.topTag() == stackOpStack, "exec", "FN return lost its operator stack frame")
	in.discard(false)

	in.pushValue(v)
}
