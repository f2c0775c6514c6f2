package main

import (
	"encoding/binary"
)

//
// Line record layout:
//
//   [lineNumber u16][length u16][execOffset u16][source...][exec...][NUL]
//
// execOffset is relative to the record start and also marks the end of
// the source stream.  Records are packed with no padding, so the stride
// from one record to the next is length.  The program always ends with
// the sentinel record, line number endMarker, whose executable stream
// is the hidden END token
//

func lineNumber(mem []byte, p offset) int {

	return int(binary.LittleEndian.Uint16(mem[p:]))
}

func setLineNumber(mem []byte, p offset, n int) {

	binary.LittleEndian.PutUint16(mem[p:], uint16(n))
}

func lineLength(mem []byte, p offset) int {

	return int(binary.LittleEndian.Uint16(mem[p+2:]))
}

func atProgramEnd(mem []byte, p offset) bool {

	return lineNumber(mem, p) == endMarker
}

func sourceStart(p offset) offset {

	return p + lineHeaderSize
}

func execStart(mem []byte, p offset) offset {

	return p + offset(binary.LittleEndian.Uint16(mem[p+4:]))
}

func nextLine(mem []byte, p offset) offset {

	return p + offset(lineLength(mem, p))
}

func writeSentinel(mem []byte, p offset) {

	copy(mem[p:], makeRecord(endMarker, nil, []byte{tokHiddenEnd}))
}

//
// Assemble a record from its two token streams
//

func makeRecord(n int, source, exec []byte) []byte {

	length := lineHeaderSize + len(source) + len(exec) + 1

	rec := make([]byte, length)
	binary.LittleEndian.PutUint16(rec[0:], uint16(n))
	binary.LittleEndian.PutUint16(rec[2:], uint16(length))
	binary.LittleEndian.PutUint16(rec[4:], uint16(lineHeaderSize+len(source)))

	copy(rec[lineHeaderSize:], source)
	copy(rec[lineHeaderSize+len(source):], exec)

	return rec
}

//
// Size of the executable token at p, including its payload.  Returns 0
// for a byte that cannot start a token or a payload running off the end
// of mem, so callers walking untrusted bytes can stop cleanly
//

func tokenSize(mem []byte, p offset) int {

	if p < 0 || int(p) >= len(mem) {
		return 0
	}

	size := 1
	b := mem[p]

	switch {
	case b == tokXLineNum || b == tokLineRef:
		size = 7

	case b == tokIntCon:
		size = 5

	case b == tokFloatCon:
		size = 9

	case b == tokStrCon:
		if int(p)+3 > len(mem) {
			return 0
		}
		size = 3 + int(binary.LittleEndian.Uint16(mem[p+1:]))

	case b >= tokXVar && b <= tokFnRef:
		if int(p)+6 > len(mem) {
			return 0
		}
		size = 6 + int(mem[p+5])

	case b == tokHiddenEnd || b == tokLE || b == tokGE || b == tokNE:
		size = 1

	case isKeyword(b):
		size = 1

	case b >= 0x20 && b < 0x7F:
		size = 1

	default:
		return 0
	}

	if int(p)+size > len(mem) {
		return 0
	}

	return size
}

//
// Same for the source stream, which is text plus keyword bytes plus
// line number tokens
//

func sourceTokenSize(mem []byte, p offset) int {

	if p < 0 || int(p) >= len(mem) {
		return 0
	}

	b := mem[p]

	switch {
	case b == tokLineNum:
		if int(p)+3 > len(mem) {
			return 0
		}
		return 3

	case b < 0x20:
		return 0
	}

	return 1
}

//
// Check that the bytes at p form a well-formed line record no bigger
// than limit-p.  Both token streams must walk exactly onto their
// boundaries.  Never reads outside mem[:limit]
//

func isValidLine(mem []byte, p offset, limit offset) bool {

	if limit > offset(len(mem)) {
		limit = offset(len(mem))
	}

	if p < 0 || p+lineHeaderSize > limit {
		return false
	}

	n := lineNumber(mem, p)
	length := lineLength(mem, p)
	execOff := int(binary.LittleEndian.Uint16(mem[p+4:]))

	if n > maxLineNo && n != endMarker {
		return false
	}

	if length < minLineLen || length > maxLineLen || p+offset(length) > limit {
		return false
	}

	if execOff < lineHeaderSize || execOff > length-1 {
		return false
	}

	end := p + offset(length)
	view := mem[:end]

	srcEnd := p + offset(execOff)
	for q := sourceStart(p); q != srcEnd; {
		if q > srcEnd {
			return false
		}
		size := sourceTokenSize(view[:srcEnd], q)
		if size == 0 {
			return false
		}
		q += offset(size)
	}

	execEnd := end - 1
	for q := p + offset(execOff); q != execEnd; {
		if q > execEnd {
			return false
		}
		size := tokenSize(view[:execEnd], q)
		if size == 0 {
			return false
		}
		q += offset(size)
	}

	if view[execEnd] != 0 {
		return false
	}

	if n == endMarker {
		return length == sentinelLen && view[p+offset(execOff)] == tokHiddenEnd
	}

	return true
}

//
// Walk the records from p to the sentinel.  Returns the offset of the
// first bad record, or the sentinel, and whether the walk was clean.
// A record whose line number does not follow on from the one before
// counts as bad
//

func validateProgram(mem []byte, p offset, limit offset) (offset, bool) {

	prev := -1

	for {
		if !isValidLine(mem, p, limit) {
			return p, false
		}

		if atProgramEnd(mem, p) {
			return p, true
		}

		n := lineNumber(mem, p)
		if n <= prev {
			return p, false
		}
		prev = n

		p = nextLine(mem, p)
	}
}

//
// Two-state references.  resolve turns an unresolved token into its
// cached form; invalidate turns it back
//

func resolveLineRef(mem []byte, p offset, rec offset) {

	mem[p] = tokLineRef
	binary.LittleEndian.PutUint32(mem[p+1:], uint32(rec))
}

func invalidateLineRef(mem []byte, p offset) {

	rec := offset(binary.LittleEndian.Uint32(mem[p+1:]))

	mem[p] = tokXLineNum
	binary.LittleEndian.PutUint32(mem[p+1:], uint32(lineNumber(mem, rec)))
}

func resolveName(mem []byte, p offset, addr offset) {

	mem[p]++
	binary.LittleEndian.PutUint32(mem[p+1:], uint32(addr))
}

func invalidateName(mem []byte, p offset) {

	mem[p]--
	binary.LittleEndian.PutUint32(mem[p+1:], 0)
}

//
// The name carried by a variable, PROC or FN token
//

func tokenName(mem []byte, p offset) string {

	n := offset(mem[p+5])

	return string(mem[p+6 : p+6+n])
}
