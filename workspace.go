package main

import (
	"encoding/binary"
	"fmt"
	"math"
)

//
// The workspace is one byte slice.  From the bottom:
//
//   [0:4]              start marker
//   [page:top)         line records, ending with the sentinel
//   [lomem:vartop)     heap (variables, arrays, strings, libraries)
//   [sp:himem)         evaluation stack, growing down
//   [himem:himem+cmd)  the record for the line typed at the prompt
//   [cmdBase+cmd:)     INSTALLed libraries, appended as they arrive
//
// Offsets into mem are stable for the life of the session; only the
// installed library area ever makes the slice grow
//

type workspace struct {
	mem        []byte
	page       offset
	top        offset
	lomem      offset
	vartop     offset
	stacklimit offset
	himem      offset
	sp         offset
	cmdBase    offset
	libBase    offset
}

func newWorkspace(sizeKB int) (*workspace, error) {

	if sizeKB < minWorkspaceKB || sizeKB > maxWorkspaceKB {
		return nil, fmt.Errorf("workspace size %dKB is outside %dKB..%dKB",
			sizeKB, minWorkspaceKB, maxWorkspaceKB)
	}

	size := sizeKB * 1024

	ws := &workspace{mem: make([]byte, size+cmdBufSize)}

	binary.LittleEndian.PutUint32(ws.mem[0:], startMarker)

	ws.page = markerSize
	ws.himem = offset(size)
	ws.cmdBase = ws.himem
	ws.libBase = ws.cmdBase + cmdBufSize

	ws.clearProgram()

	return ws, nil
}

//
// Reset to an empty program: just the sentinel record
//

func (ws *workspace) clearProgram() {

	writeSentinel(ws.mem, ws.page)
	ws.top = ws.page + sentinelLen

	ws.clearHeap()
	ws.resetStack()
}

func (ws *workspace) resetStack() {

	ws.sp = ws.himem
}

func (ws *workspace) hasMarker() bool {

	return binary.LittleEndian.Uint32(ws.mem[0:]) == startMarker
}

//
// The room left between the heap and the stack
//

func (ws *workspace) free() int {

	return int(ws.sp - ws.vartop)
}

//
// A range [p, p+n) lies inside the backing slice.  Indirection
// operators check addresses with this before touching memory
//

func (ws *workspace) inRange(p offset, n int) bool {

	return p >= 0 && n >= 0 && int(p)+n <= len(ws.mem)
}

func (ws *workspace) inProgram(p offset) bool {

	return p >= ws.page && p < ws.top
}

func (ws *workspace) inCmdBuffer(p offset) bool {

	return p >= ws.cmdBase && p < ws.cmdBase+cmdBufSize
}

//
// Append a permanently installed library's records above everything
// else.  Nothing below libBase moves, so no offset goes stale
//

func (ws *workspace) installBlock(data []byte) offset {

	base := offset(len(ws.mem))
	ws.mem = append(ws.mem, data...)

	return base
}

//
// Little-endian accessors used all over the kernel
//

func (ws *workspace) getU16(p offset) int {

	return int(binary.LittleEndian.Uint16(ws.mem[p:]))
}

func (ws *workspace) putU16(p offset, v int) {

	binary.LittleEndian.PutUint16(ws.mem[p:], uint16(v))
}

func (ws *workspace) getU32(p offset) offset {

	return offset(binary.LittleEndian.Uint32(ws.mem[p:]))
}

func (ws *workspace) putU32(p offset, v offset) {

	binary.LittleEndian.PutUint32(ws.mem[p:], uint32(v))
}

func (ws *workspace) getInt(p offset) int32 {

	return int32(binary.LittleEndian.Uint32(ws.mem[p:]))
}

func (ws *workspace) putInt(p offset, v int32) {

	binary.LittleEndian.PutUint32(ws.mem[p:], uint32(v))
}

func (ws *workspace) getFloat(p offset) float64 {

	return math.Float64frombits(binary.LittleEndian.Uint64(ws.mem[p:]))
}

func (ws *workspace) putFloat(p offset, f float64) {

	binary.LittleEndian.PutUint64(ws.mem[p:], math.Float64bits(f))
}

func (ws *workspace) zero(p offset, n int) {

	clear(ws.mem[p : p+offset(n)])
}
