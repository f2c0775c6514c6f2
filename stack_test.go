package main

import (
	"testing"
)

//
// A RETURN parameter whose copy back fails must still come off the
// stack exactly once, leaving the caller's string intact
//

func TestFailedCopyBack(t *testing.T) {

	in, _ := newTestInterp(t)
	enter(t, in, `A$="caller"`)

	addr, ok := in.lookupVar("A$")
	if !ok {
		t.Fatal("A$ not created")
	}

	ws := in.ws
	base := ws.sp

	local := lvalue{kind: lvString, addr: addr}
	dest := lvalue{kind: lvByte, addr: 0}

	err := protect(func() {
		in.saveLocal(local, &dest)
		in.storeLValue(local, value{kind: valString, s: "inner"})
	})
	if err != nil {
		t.Fatalf("binding: %v", err)
	}

	if err := protect(func() { in.discard(true) }); !isError(err, ETYPE) {
		t.Fatalf("copy back = %v, want %s", err, ETYPE)
	}

	if ws.sp != base {
		t.Errorf("frame left on the stack: sp %d, want %d", ws.sp, base)
	}

	vartop := ws.vartop
	in.unwindTo(base)

	if got := ws.stringAt(addr); got != "caller" {
		t.Errorf("A$ = %q after the failed copy back", got)
	}

	if ws.vartop != vartop {
		t.Errorf("caller's string freed a second time: vartop %d, was %d", ws.vartop, vartop)
	}
}
