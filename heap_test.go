package main

import (
	"testing"
)

func TestNewWorkspace(t *testing.T) {

	tests := []struct {
		sizeKB  int
		wantErr bool
	}{
		{minWorkspaceKB - 1, true},
		{minWorkspaceKB, false},
		{defaultWorkspaceKB, false},
		{maxWorkspaceKB + 1, true},
	}

	for _, tt := range tests {
		ws, err := newWorkspace(tt.sizeKB)

		if (err != nil) != tt.wantErr {
			t.Errorf("newWorkspace(%d) error = %v, wantErr %t", tt.sizeKB, err, tt.wantErr)
			continue
		}

		if err != nil {
			continue
		}

		if !ws.hasMarker() {
			t.Errorf("newWorkspace(%d): no start marker", tt.sizeKB)
		}

		if !atProgramEnd(ws.mem, ws.page) || ws.top != ws.page+sentinelLen {
			t.Errorf("newWorkspace(%d): program not empty", tt.sizeKB)
		}

		if ws.sp != ws.himem || ws.lomem%align != 0 {
			t.Errorf("newWorkspace(%d): bad layout: sp %d himem %d lomem %d", tt.sizeKB,
				ws.sp, ws.himem, ws.lomem)
		}
	}
}

func TestAllocate(t *testing.T) {

	ws, err := newWorkspace(minWorkspaceKB)
	if err != nil {
		t.Fatal(err)
	}

	p1, err := ws.allocate(3)
	if err != nil {
		t.Fatal(err)
	}

	p2, err := ws.allocate(9)
	if err != nil {
		t.Fatal(err)
	}

	if p1 != ws.lomem || p2 != p1+align || ws.vartop != p2+2*align {
		t.Errorf("allocations at %d, %d with vartop %d", p1, p2, ws.vartop)
	}

	// Only the newest block goes back
	ws.freeBlock(p1, 3)
	if ws.vartop != p2+2*align {
		t.Errorf("older block was returned")
	}

	ws.freeBlock(p2, 9)
	if ws.vartop != p2 {
		t.Errorf("newest block not returned: vartop %d", ws.vartop)
	}

	if _, err := ws.allocate(ws.free()); !isError(err, ENOROOM) {
		t.Errorf("allocating everything = %v, want %s", err, ENOROOM)
	}

	if ws.vartop+stackBuffer > ws.sp {
		t.Errorf("heap ran into the stack buffer")
	}
}

func TestStoreString(t *testing.T) {

	ws, err := newWorkspace(minWorkspaceKB)
	if err != nil {
		t.Fatal(err)
	}

	d, err := ws.allocate(stringDescSize)
	if err != nil {
		t.Fatal(err)
	}
	ws.writeDesc(d, nilOffset, 0, 0)

	if got := ws.stringAt(d); got != "" {
		t.Errorf("new string = %q", got)
	}

	steps := []string{"hello", "hi", "a longer string than before", "", "x"}

	for _, str := range steps {
		if err := ws.storeString(d, str); err != nil {
			t.Fatalf("storeString(%q): %v", str, err)
		}

		if got := ws.stringAt(d); got != str {
			t.Errorf("stringAt after storing %q = %q", str, got)
		}

		_, length, capacity := ws.readDesc(d)
		if length > capacity {
			t.Errorf("length %d exceeds capacity %d", length, capacity)
		}
	}

	// The buffer is the newest block, so growing it happens in place
	ptr, _, _ := ws.readDesc(d)
	if err := ws.storeString(d, string(make([]byte, 100))); err != nil {
		t.Fatal(err)
	}

	if np, _, _ := ws.readDesc(d); np != ptr {
		t.Errorf("string moved from %d to %d instead of growing", ptr, np)
	}

	if err := ws.storeString(d, string(make([]byte, maxStringLen+1))); !isError(err, ESTRINGLEN) {
		t.Errorf("oversized string = %v", err)
	}
}
