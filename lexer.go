package main

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

//
// The lexer turns one line of text into the two token streams of a
// line record.  The source stream keeps the text as typed, with
// keywords squeezed to one byte and line numbers after GOTO and
// friends turned into tokLineNum so renumbering can rewrite them.  The
// executable stream is built from the source stream: no spaces,
// constants converted, names and line numbers in their unresolved form
//

type lexer struct {
	line    string
	pos     int
	src     []byte
	lineCtx bool
}

func newLexer(line string) *lexer {

	return &lexer{line: line, src: make([]byte, 0, len(line))}
}

//
// Split an optional leading line number off a line of text.  One space
// after the number is dropped; any further spaces are indentation and
// are kept
//

func splitLineNumber(text string) (int, string, bool, error) {

	i := 0
	for i < len(text) && text[i] == ' ' {
		i++
	}

	j := i
	for j < len(text) && isDigit(text[j]) {
		j++
	}

	if j == i {
		return 0, text[i:], false, nil
	}

	n, err := strconv.Atoi(text[i:j])
	if err != nil || n > maxLineNo {
		return 0, "", true, newError(ELINENO)
	}

	if j < len(text) && text[j] == ' ' {
		j++
	}

	return n, text[j:], true, nil
}

//
// Build the record for line n from its text
//

func encodeLine(n int, text string) ([]byte, error) {

	lex := newLexer(text)

	src := lex.tokenizeSource()

	exec, err := buildExec(src)
	if err != nil {
		return nil, err
	}

	if lineHeaderSize+len(src)+len(exec)+1 > maxLineLen {
		return nil, newError(ELINETOOLONG)
	}

	return makeRecord(n, src, exec), nil
}

func (lex *lexer) tokenizeSource() []byte {

	text := lex.line

	for lex.pos < len(text) {
		c := text[lex.pos]

		switch {
		case c == '"':
			j := lex.pos + 1
			for j < len(text) && text[j] != '"' {
				j++
			}
			if j < len(text) {
				j++
			}
			lex.appendText(text[lex.pos:j])
			lex.pos = j
			lex.lineCtx = false

		case c == '&':
			j := lex.pos + 1
			for j < len(text) && isHexDigit(text[j]) {
				j++
			}
			lex.appendText(text[lex.pos:j])
			lex.pos = j
			lex.lineCtx = false

		case c >= 'A' && c <= 'Z' && lex.keyword():
			// handled

		case isNameStart(c):
			j := lex.pos
			for j < len(text) && isNameChar(text[j]) {
				j++
			}
			lex.appendText(text[lex.pos:j])
			lex.pos = j
			lex.lineCtx = false

		case isDigit(c) && lex.lineCtx:
			j := lex.pos
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			n, err := strconv.Atoi(text[lex.pos:j])
			if err == nil && n <= maxLineNo {
				lex.src = append(lex.src, tokLineNum, byte(n), byte(n>>8))
			} else {
				lex.appendText(text[lex.pos:j])
			}
			lex.pos = j

		case c == ' ' || c == ',' || c == '\t':
			lex.appendText(text[lex.pos : lex.pos+1])
			lex.pos++

		default:
			lex.appendText(text[lex.pos : lex.pos+1])
			lex.pos++
			lex.lineCtx = false
		}
	}

	return lex.src
}

//
// Try to match a keyword at the current position.  Conditional keywords
// only count when they are not the start of a longer name
//

func (lex *lexer) keyword() bool {

	text := lex.line
	i := lex.pos

	for _, kw := range byLetter[text[i]-'A'] {
		if !strings.HasPrefix(text[i:], kw.name) {
			continue
		}

		j := i + len(kw.name)

		if kw.flags&kwConditional != 0 && j < len(text) &&
			(isNameStart(text[j]) || text[j] == '%' || text[j] == '$') {
			continue
		}

		lex.src = append(lex.src, kw.token)
		lex.pos = j
		lex.lineCtx = kw.flags&kwLineNum != 0

		switch {
		case kw.flags&kwRestOfLine != 0:
			lex.appendText(text[j:])
			lex.pos = len(text)

		case kw.flags&kwName != 0:
			for j < len(text) && isNameChar(text[j]) {
				j++
			}
			lex.appendText(text[lex.pos:j])
			lex.pos = j
		}

		return true
	}

	return false
}

//
// Copy text into the source stream.  Tabs become spaces and other
// control characters are dropped, so the only byte below 0x20 in a
// source stream is tokLineNum
//

func (lex *lexer) appendText(t string) {

	for i := 0; i < len(t); i++ {
		c := t[i]

		switch {
		case c == '\t':
			lex.src = append(lex.src, ' ')

		case c < 0x20 || c == 0x7F:
			// dropped

		default:
			lex.src = append(lex.src, c)
		}
	}
}

func isHexDigit(c byte) bool {

	return isDigit(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

//
// Build the executable stream from a source stream.  Bytes at 0x80 and
// above outside string literals are keywords; inside quotes, REM and
// DATA they are text
//

func buildExec(src []byte) ([]byte, error) {

	exec := make([]byte, 0, 2*len(src)+1)

	for i := 0; i < len(src); {
		c := src[i]

		switch {
		case c == ' ':
			i++

		case c == '"':
			var str []byte
			j := i + 1
			for j < len(src) {
				if src[j] == '"' {
					if j+1 < len(src) && src[j+1] == '"' {
						str = append(str, '"')
						j += 2
						continue
					}
					break
				}
				str = append(str, src[j])
				j++
			}
			if j < len(src) {
				j++
			}
			exec = append(exec, tokStrCon, byte(len(str)), byte(len(str)>>8))
			exec = append(exec, str...)
			i = j

		case c == tokLineNum:
			n := int(src[i+1]) | int(src[i+2])<<8
			exec = appendLineRef(exec, n, lineHeaderSize+i)
			i += 3

		case c == tokREM || c == tokDATA:
			exec = append(exec, c)
			i = len(src)

		case c == tokPROC || c == tokFN:
			j := i + 1
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			tok := byte(tokXProc)
			if c == tokFN {
				tok = tokXFn
			}
			var err error
			if exec, err = appendName(exec, tok, src[i+1:j]); err != nil {
				return nil, err
			}
			i = j

		case isKeyword(c):
			exec = append(exec, c)
			i++

		case isDigit(c) || c == '.':
			i = appendNumber(&exec, src, i)

		case c == '&':
			j := i + 1
			for j < len(src) && isHexDigit(src[j]) {
				j++
			}
			v, err := strconv.ParseUint(string(src[i+1:j]), 16, 32)
			if err != nil {
				return nil, newError(ESYNTAX)
			}
			exec = appendInt(exec, int32(uint32(v)))
			i = j

		case isNameStart(c):
			j := i
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			if j < len(src) && (src[j] == '%' || src[j] == '$') {
				j++
			}
			if j < len(src) && src[j] == '(' {
				j++
			}
			var err error
			if exec, err = appendName(exec, tokXVar, src[i:j]); err != nil {
				return nil, err
			}
			i = j

		case c == '<' && i+1 < len(src) && src[i+1] == '=':
			exec = append(exec, tokLE)
			i += 2

		case c == '<' && i+1 < len(src) && src[i+1] == '>':
			exec = append(exec, tokNE)
			i += 2

		case c == '>' && i+1 < len(src) && src[i+1] == '=':
			exec = append(exec, tokGE)
			i += 2

		default:
			if c >= 0x20 && c < 0x7F {
				exec = append(exec, c)
			}
			i++
		}
	}

	return exec, nil
}

func appendLineRef(exec []byte, n int, srcOff int) []byte {

	exec = append(exec, tokXLineNum, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(exec[len(exec)-6:], uint32(n))
	binary.LittleEndian.PutUint16(exec[len(exec)-2:], uint16(srcOff))

	return exec
}

func appendName(exec []byte, tok byte, name []byte) ([]byte, error) {

	if len(name) == 0 || len(name) > maxNameLen {
		return nil, newError(ESYNTAX)
	}

	exec = append(exec, tok, 0, 0, 0, 0, byte(len(name)))

	return append(exec, name...), nil
}

func appendInt(exec []byte, v int32) []byte {

	exec = append(exec, tokIntCon, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(exec[len(exec)-4:], uint32(v))

	return exec
}

func appendFloat(exec []byte, f float64) []byte {

	exec = append(exec, tokFloatCon, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint64(exec[len(exec)-8:], math.Float64bits(f))

	return exec
}

//
// Numbers without a fraction or exponent that fit 32 bits become
// integer constants; everything else is a float
//

func appendNumber(exec *[]byte, src []byte, i int) int {

	j := i
	isFloat := false

	for j < len(src) && isDigit(src[j]) {
		j++
	}

	if j < len(src) && src[j] == '.' {
		isFloat = true
		j++
		for j < len(src) && isDigit(src[j]) {
			j++
		}
	}

	if j < len(src) && src[j] == 'E' {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			isFloat = true
			j = k
			for j < len(src) && isDigit(src[j]) {
				j++
			}
		}
	}

	text := string(src[i:j])

	if !isFloat {
		if v, err := strconv.ParseInt(text, 10, 32); err == nil {
			*exec = appendInt(*exec, int32(v))
			return j
		}
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		f = 0
	}

	*exec = appendFloat(*exec, f)

	return j
}

//
// Expand the source stream of the record at p back to text
//

func expandSource(mem []byte, p offset) string {

	var sb strings.Builder

	end := execStart(mem, p)
	quoted := false
	raw := false

	for q := sourceStart(p); q < end; {
		b := mem[q]

		switch {
		case raw || (quoted && b != '"'):
			sb.WriteByte(b)
			q++

		case b == '"':
			quoted = !quoted
			sb.WriteByte(b)
			q++

		case b == tokLineNum:
			sb.WriteString(strconv.Itoa(int(mem[q+1]) | int(mem[q+2])<<8))
			q += 3

		case isKeyword(b):
			sb.WriteString(tokenNames[b])
			raw = tokenFlags[b]&kwRestOfLine != 0
			q++

		default:
			sb.WriteByte(b)
			q++
		}
	}

	return sb.String()
}

//
// The listing form of a record: number, one space, text
//

func listLine(mem []byte, p offset, pad bool) string {

	text := expandSource(mem, p)
	num := strconv.Itoa(lineNumber(mem, p))

	if pad && len(num) < listNumWidth {
		num = strings.Repeat(" ", listNumWidth-len(num)) + num
	}

	if text == "" {
		return num
	}

	return num + " " + text
}
