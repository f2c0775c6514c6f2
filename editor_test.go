package main

import (
	"reflect"
	"testing"
)

func listing(in *interp) []string {

	var lines []string

	mem := in.ws.mem
	for p := in.ws.page; !atProgramEnd(mem, p); p = nextLine(mem, p) {
		lines = append(lines, listLine(mem, p, false))
	}

	return lines
}

func TestInsertKeepsOrder(t *testing.T) {

	in, _ := newTestInterp(t)

	enter(t, in, "30 PRINT 3", "10 PRINT 1", "20 PRINT 2", "20 PRINT \"two\"", "5 REM start")

	want := []string{"5 REM start", "10 PRINT 1", "20 PRINT \"two\"", "30 PRINT 3"}
	if got := listing(in); !reflect.DeepEqual(got, want) {
		t.Errorf("listing = %q, want %q", got, want)
	}

	if _, ok := validateProgram(in.ws.mem, in.ws.page, in.ws.top); !ok {
		t.Errorf("program fails validation after inserts")
	}
}

func TestDelete(t *testing.T) {

	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{"blank line deletes", []string{"20"}, []string{"10 A=1", "30 C=3", "40 D=4"}},
		{"missing line is ignored", []string{"25"}, []string{"10 A=1", "20 B=2", "30 C=3", "40 D=4"}},
		{"range", []string{"DELETE 15,30"}, []string{"10 A=1", "40 D=4"}},
		{"single", []string{"DELETE 40"}, []string{"10 A=1", "20 B=2", "30 C=3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newTestInterp(t)

			enter(t, in, "10 A=1", "20 B=2", "30 C=3", "40 D=4")
			enter(t, in, tt.lines...)

			if got := listing(in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("listing = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenumberUpdatesReferences(t *testing.T) {

	in, _ := newTestInterp(t)

	enter(t, in, "10 GOSUB 30", "20 END", "30 ON X% GOTO 10,20", "40 RESTORE 30: RETURN")

	if err := in.renumber(100, 5); err != nil {
		t.Fatalf("renumber: %v", err)
	}

	want := []string{
		"100 GOSUB 110",
		"105 END",
		"110 ON X% GOTO 100,105",
		"115 RESTORE 110: RETURN",
	}

	if got := listing(in); !reflect.DeepEqual(got, want) {
		t.Errorf("listing = %q, want %q", got, want)
	}
}

func TestRenumberIsIdempotent(t *testing.T) {

	in, _ := newTestInterp(t)

	enter(t, in, "1 GOTO 7", "7 PRINT 7", "9 GOTO 1")

	if err := in.renumber(10, 10); err != nil {
		t.Fatalf("renumber: %v", err)
	}
	first := listing(in)

	if err := in.renumber(10, 10); err != nil {
		t.Fatalf("renumber: %v", err)
	}

	if second := listing(in); !reflect.DeepEqual(first, second) {
		t.Errorf("second renumber changed the program: %q then %q", first, second)
	}
}

func TestRenumberOverflowFallsBack(t *testing.T) {

	in, _ := newTestInterp(t)

	enter(t, in, "10 GOTO 30", "20 END", "30 GOTO 10")

	err := in.renumber(65000, 1000)
	if !isError(err, ERENUMBER) {
		t.Fatalf("renumber error = %v, want %s", err, ERENUMBER)
	}

	want := []string{"1 GOTO 3", "2 END", "3 GOTO 1"}
	if got := listing(in); !reflect.DeepEqual(got, want) {
		t.Errorf("listing = %q, want %q", got, want)
	}
}

func TestRenumberRunsAfterwards(t *testing.T) {

	in, con := newTestInterp(t)

	enter(t, in, "1 GOSUB 3", "2 END", "3 PRINT \"sub\": RETURN", "RENUMBER")

	con.out.Reset()

	if err := in.executeLine("RUN"); err != nil {
		if _, ok := err.(*crawlout); !ok {
			t.Fatalf("RUN: %v", err)
		}
	}

	if got := con.out.String(); got != "sub\n" {
		t.Errorf("output = %q", got)
	}
}

func TestNewOld(t *testing.T) {

	in, _ := newTestInterp(t)

	if err := in.oldProgram(); !isError(err, EBADPROG) {
		t.Errorf("OLD with nothing to recover = %v", err)
	}

	enter(t, in, "10 PRINT 1", "20 PRINT 2")
	want := listing(in)

	enter(t, in, "NEW")
	if n := in.programLines(); n != 0 {
		t.Fatalf("%d lines after NEW", n)
	}

	enter(t, in, "OLD")
	if got := listing(in); !reflect.DeepEqual(got, want) {
		t.Errorf("listing after OLD = %q, want %q", got, want)
	}
}

func TestEditClearsVariables(t *testing.T) {

	in, _ := newTestInterp(t)

	enter(t, in, "A%=7", "10 REM")

	if _, ok := in.lookupVar("A%"); ok {
		t.Errorf("A%% survived a program edit")
	}

	if in.ws.vartop != in.ws.lomem {
		t.Errorf("heap not empty after edit: lomem %d vartop %d", in.ws.lomem, in.ws.vartop)
	}
}

func TestLineTooBig(t *testing.T) {

	in, _ := newTestInterp(t)

	if err := in.executeLine("70000 PRINT"); !isError(err, ELINENO) {
		t.Errorf("line 70000 = %v", err)
	}
}

func TestEditBetweenRuns(t *testing.T) {

	in, con := newTestInterp(t)

	enter(t, in,
		"10 A%=5",
		"20 GOSUB 100",
		"30 PRINT A%",
		"40 END",
		"100 A%=A%*2",
		"110 RETURN",
	)

	if got := rerun(t, in, con); got != "10\n" {
		t.Fatalf("first run = %q", got)
	}

	// Moves every record after line 10 under the resolved references
	enter(t, in, "15 A%=A%+1", "20", "25 GOSUB 100")

	if got := rerun(t, in, con); got != "12\n" {
		t.Errorf("run after editing = %q", got)
	}

	enter(t, in, "15")

	if got := rerun(t, in, con); got != "10\n" {
		t.Errorf("run after deleting = %q", got)
	}
}
