package main

import (
	"github.com/tliron/commonlog"
)

//
// Bump allocator between lomem and the stack.  Blocks are 8-byte
// aligned.  Only the most recently allocated block can be handed
// back; everything else lives until CLEAR, NEW or a program edit
// resets vartop to lomem
//

var heapLog = commonlog.GetLogger("brandy.heap")

//
// String descriptor: [ptr u32][len u32][cap u32]
//

const stringDescSize = 12

func alignUp(n offset) offset {

	return (n + align - 1) &^ (align - 1)
}

func (ws *workspace) clearHeap() {

	ws.lomem = alignUp(ws.top)
	ws.vartop = ws.lomem
	ws.stacklimit = ws.vartop + stackBuffer
}

//
// Returns nilOffset rather than failing, for callers with a fallback
//

func (ws *workspace) conditionalAllocate(size int) offset {

	n := alignUp(offset(size))

	if n < 0 || ws.vartop+n+stackBuffer > ws.sp {
		return nilOffset
	}

	p := ws.vartop
	ws.vartop += n
	ws.stacklimit = ws.vartop + stackBuffer

	return p
}

func (ws *workspace) allocate(size int) (offset, error) {

	p := ws.conditionalAllocate(size)
	if p == nilOffset {
		heapLog.Debugf("allocation of %d bytes failed, %d free", size, ws.free())
		return nilOffset, newError(ENOROOM)
	}

	return p, nil
}

func (ws *workspace) isReturnable(p offset, size int) bool {

	return p+alignUp(offset(size)) == ws.vartop
}

func (ws *workspace) freeBlock(p offset, size int) {

	if size > 0 && ws.isReturnable(p, size) {
		ws.vartop = p
		ws.stacklimit = ws.vartop + stackBuffer
	}
}

//
// Grow the most recently allocated block in place
//

func (ws *workspace) extendBlock(p offset, oldSize, newSize int) bool {

	if !ws.isReturnable(p, oldSize) {
		return false
	}

	end := p + alignUp(offset(newSize))
	if end+stackBuffer > ws.sp {
		return false
	}

	ws.vartop = end
	ws.stacklimit = ws.vartop + stackBuffer

	return true
}

//
// Strings.  A string variable holds a descriptor; the characters live
// in a separate heap block owned by exactly that descriptor
//

func (ws *workspace) readDesc(d offset) (offset, int, int) {

	return ws.getU32(d), int(ws.getU32(d + 4)), int(ws.getU32(d + 8))
}

func (ws *workspace) writeDesc(d offset, ptr offset, length, capacity int) {

	ws.putU32(d, ptr)
	ws.putU32(d+4, offset(length))
	ws.putU32(d+8, offset(capacity))
}

func (ws *workspace) stringAt(d offset) string {

	ptr, length, _ := ws.readDesc(d)
	if length == 0 {
		return ""
	}

	return string(ws.mem[ptr : ptr+offset(length)])
}

//
// Copy str into heap memory, returning the block
//

func (ws *workspace) allocString(str string) (offset, error) {

	if len(str) == 0 {
		return nilOffset, nil
	}

	p, err := ws.allocate(len(str))
	if err != nil {
		return nilOffset, err
	}

	copy(ws.mem[p:], str)

	return p, nil
}

//
// Assign str to the string descriptor at d, reusing its buffer when it
// is big enough and handing the old one back otherwise
//

func (ws *workspace) storeString(d offset, str string) error {

	if len(str) > maxStringLen {
		return newError(ESTRINGLEN)
	}

	ptr, _, capacity := ws.readDesc(d)

	if len(str) <= capacity {
		copy(ws.mem[ptr:], str)
		ws.writeDesc(d, ptr, len(str), capacity)
		return nil
	}

	if capacity > 0 && ws.extendBlock(ptr, capacity, len(str)) {
		copy(ws.mem[ptr:], str)
		ws.writeDesc(d, ptr, len(str), int(alignUp(offset(len(str)))))
		return nil
	}

	ws.freeBlock(ptr, capacity)

	np, err := ws.allocString(str)
	if err != nil {
		ws.writeDesc(d, nilOffset, 0, 0)
		return err
	}

	ws.writeDesc(d, np, len(str), int(alignUp(offset(len(str)))))

	return nil
}

//
// Hand a temporary string buffer to the descriptor at d.  The old
// buffer is released
//

func (ws *workspace) adoptString(d offset, ptr offset, length, capacity int) {

	oldPtr, _, oldCap := ws.readDesc(d)

	ws.writeDesc(d, ptr, length, capacity)

	if oldCap > 0 && oldPtr != ptr {
		ws.freeBlock(oldPtr, oldCap)
	}
}
