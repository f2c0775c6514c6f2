package main

import (
	"strings"
	"testing"
)

func newTestInterp(t *testing.T) (*interp, *bufferConsole) {

	t.Helper()

	con := &bufferConsole{cols: 80}

	in, err := newInterp(defaultConfig(), con)
	if err != nil {
		t.Fatalf("newInterp: %v", err)
	}

	return in, con
}

func enter(t *testing.T, in *interp, lines ...string) {

	t.Helper()

	for _, l := range lines {
		if err := in.executeLine(l); err != nil {
			t.Fatalf("%q: %v", l, err)
		}
	}
}

//
// Enter a program, run it and return what it printed.  A plain END
// (or running off the end) is not an error
//

func runProgram(t *testing.T, lines ...string) (*interp, string, error) {

	t.Helper()

	in, con := newTestInterp(t)
	enter(t, in, lines...)

	con.out.Reset()

	err := in.executeLine("RUN")
	if c, ok := err.(*crawlout); ok && !c.stop && !c.quit {
		err = nil
	}

	return in, con.out.String(), err
}

//
// RUN the program already in the workspace and return its output
//

func rerun(t *testing.T, in *interp, con *bufferConsole) string {

	t.Helper()

	con.out.Reset()

	if err := in.executeLine("RUN"); err != nil {
		if _, ok := err.(*crawlout); !ok {
			t.Fatalf("RUN: %v", err)
		}
	}

	return con.out.String()
}

func TestPrintExpressions(t *testing.T) {

	tests := []struct {
		expr string
		want string
	}{
		{"1+2*3", "7"},
		{"(1+2)*3", "9"},
		{"7/2", "3.5"},
		{"10/2", "5"},
		{"7 DIV 2", "3"},
		{"7 MOD 3", "1"},
		{"2^10", "1024"},
		{"2147483647+1", "2.14748365E9"},
		{"1=1", "-1"},
		{"1<>1", "0"},
		{"3 AND 5", "1"},
		{"3 OR 4", "7"},
		{"NOT 0", "-1"},
		{"-4+1", "-3"},
		{"ABS(-4)", "4"},
		{"INT(-2.5)", "-3"},
		{"SQR(16)", "4"},
		{`"ab"+"cd"`, "abcd"},
		{`"abc"<"abd"`, "-1"},
		{`LEFT$("hello",2)`, "he"},
		{`LEFT$("hello")`, "hell"},
		{`RIGHT$("hello",3)`, "llo"},
		{`MID$("hello",2,3)`, "ell"},
		{`MID$("hello",4)`, "lo"},
		{`INSTR("hello","l")`, "3"},
		{`INSTR("hello","z")`, "0"},
		{`LEN("hello")`, "5"},
		{`CHR$(65)`, "A"},
		{`ASC("A")`, "65"},
		{`STR$(12)`, "12"},
		{`VAL("3.25")`, "3.25"},
		{`STRING$(3,"ab")`, "ababab"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			in, con := newTestInterp(t)

			if err := in.executeLine("PRINT " + tt.expr); err != nil {
				t.Fatalf("PRINT %s: %v", tt.expr, err)
			}

			if got := con.out.String(); got != tt.want+"\n" {
				t.Errorf("PRINT %s = %q, want %q", tt.expr, got, tt.want+"\n")
			}
		})
	}
}

func TestPrintSeparators(t *testing.T) {

	in, con := newTestInterp(t)

	enter(t, in, `PRINT "a";"b";`, `PRINT "c"`, `PRINT "x","y"`)

	want := "abc\n" + "x" + strings.Repeat(" ", zoneWidth-1) + "y\n"
	if got := con.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrograms(t *testing.T) {

	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{
			name: "for loop",
			lines: []string{
				"10 FOR I%=1 TO 3",
				"20 PRINT I%;",
				"30 NEXT",
				"40 PRINT",
			},
			want: "123\n",
		},
		{
			name: "for loop with step",
			lines: []string{
				"10 FOR X=10 TO 1 STEP -4: PRINT X;\" \";: NEXT X",
				"20 PRINT",
			},
			want: "10 6 2 \n",
		},
		{
			name: "repeat",
			lines: []string{
				"10 A%=0",
				"20 REPEAT A%+=1: UNTIL A%=5",
				"30 PRINT A%",
			},
			want: "5\n",
		},
		{
			name: "while",
			lines: []string{
				"10 I%=0",
				"20 WHILE I%<3",
				"30 I%=I%+1",
				"40 ENDWHILE",
				"50 PRINT I%",
			},
			want: "3\n",
		},
		{
			name: "while never entered",
			lines: []string{
				"10 WHILE FALSE",
				"20 PRINT \"inside\"",
				"30 ENDWHILE",
				"40 PRINT \"after\"",
			},
			want: "after\n",
		},
		{
			name: "gosub",
			lines: []string{
				"10 GOSUB 100",
				"20 PRINT \"B\"",
				"30 END",
				"100 PRINT \"A\"",
				"110 RETURN",
			},
			want: "A\nB\n",
		},
		{
			name: "on goto",
			lines: []string{
				"10 N%=2",
				"20 ON N% GOTO 100,200,300",
				"100 PRINT \"one\": END",
				"200 PRINT \"two\": END",
				"300 PRINT \"three\": END",
			},
			want: "two\n",
		},
		{
			name: "if else",
			lines: []string{
				"10 A%=3",
				"20 IF A%>2 THEN PRINT \"big\" ELSE PRINT \"small\"",
				"30 IF A%>5 THEN PRINT \"huge\" ELSE PRINT \"not huge\"",
			},
			want: "big\nnot huge\n",
		},
		{
			name: "procedure with return parameter",
			lines: []string{
				"10 A%=1: PROCadd(5, A%)",
				"20 PRINT A%",
				"30 END",
				"100 DEF PROCadd(N%, RETURN R%)",
				"110 R%=R%+N%",
				"120 ENDPROC",
			},
			want: "6\n",
		},
		{
			name: "procedure locals",
			lines: []string{
				"10 X%=1: PROClocal",
				"20 PRINT X%",
				"30 END",
				"100 DEF PROClocal",
				"110 LOCAL X%",
				"120 X%=99",
				"130 ENDPROC",
			},
			want: "1\n",
		},
		{
			name: "recursive function",
			lines: []string{
				"10 PRINT FNfact(5)",
				"20 END",
				"100 DEF FNfact(N%)",
				"110 IF N%<=1 THEN =1",
				"120 =N%*FNfact(N%-1)",
			},
			want: "120\n",
		},
		{
			name: "string function",
			lines: []string{
				"10 PRINT FNtwice(\"ab\")",
				"20 END",
				"100 DEF FNtwice(S$)=S$+S$",
			},
			want: "abab\n",
		},
		{
			name: "read data",
			lines: []string{
				"10 READ A%, B$, C",
				"20 PRINT A%;\" \";B$;\" \";C",
				"30 RESTORE: READ X%: PRINT X%",
				"40 DATA 12, \"hi there\", 2.5",
			},
			want: "12 hi there 2.5\n12\n",
		},
		{
			name: "arrays",
			lines: []string{
				"10 DIM A%(3)",
				"20 FOR I%=0 TO 3: A%(I%)=I%*I%: NEXT",
				"30 PRINT A%(3);A%(2)",
			},
			want: "94\n",
		},
		{
			name: "on error",
			lines: []string{
				"10 ON ERROR PRINT \"caught \";ERR;\" at \";ERL: END",
				"20 PRINT 1/0",
			},
			want: "caught 18 at 20\n",
		},
		{
			name: "user error",
			lines: []string{
				"10 ON ERROR PRINT ERR: END",
				"20 ERROR 100, \"custom\"",
			},
			want: "100\n",
		},
		{
			name: "error in a loop restores procedure locals",
			lines: []string{
				"10 A%=1: B$=\"outer\"",
				"20 ON ERROR PRINT A%;\" \";B$: END",
				"30 PROCp",
				"40 END",
				"100 DEF PROCp",
				"110 LOCAL A%, B$",
				"120 A%=99: B$=\"inner\"",
				"130 FOR I%=1 TO 3",
				"140 IF I%=2 THEN X=1/0",
				"150 NEXT",
				"160 ENDPROC",
			},
			want: "1 outer\n",
		},
		{
			name: "on error local inside function",
			lines: []string{
				"10 PRINT FNsafe(0)",
				"20 PRINT FNsafe(4)",
				"30 END",
				"100 DEF FNsafe(D)",
				"110 ON ERROR LOCAL =-1",
				"120 =1/D",
			},
			want: "-1\n0.25\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, got, err := runProgram(t, tt.lines...)
			if err != nil {
				t.Fatalf("RUN: %v (output %q)", err, got)
			}

			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}

			if in.ws.sp != in.ws.himem {
				t.Errorf("stack not empty after run: sp %d, himem %d", in.ws.sp, in.ws.himem)
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {

	tests := []struct {
		name  string
		lines []string
		want  string
		line  int
	}{
		{"division by zero", []string{"10 PRINT 1/0"}, EDIVZERO, 10},
		{"no such line", []string{"10 GOTO 50"}, ENOSUCHLINE, 10},
		{"return without gosub", []string{"10 RETURN"}, ENOGOSUB, 10},
		{"next without for", []string{"10 NEXT"}, ENOTINFOR, 10},
		{"until without repeat", []string{"10 UNTIL TRUE"}, ENOTINREPEAT, 10},
		{"endproc outside procedure", []string{"10 ENDPROC"}, ENOTINPROC, 10},
		{"missing procedure", []string{"10 PROCnothere"}, ENOSUCHPROC, 10},
		{"out of data", []string{"10 READ A%"}, EOUTOFDATA, 10},
		{"subscript", []string{"10 DIM A%(3)", "20 A%(4)=1"}, ESUBSCRIPT, 20},
		{"type mismatch", []string{"10 A%=\"x\""}, ETYPE, 10},
		{"local outside procedure", []string{"10 LOCAL A%"}, ENOTLOCAL, 10},
		{"missing endwhile", []string{"10 WHILE FALSE", "20 PRINT"}, ENOENDWHILE, 10},
		{"runaway recursion", []string{"10 PROCr", "20 DEF PROCr: PROCr"}, ESTACKFULL, 20},
		{"wrong argument count", []string{"10 PROCp(1,2)", "20 END", "30 DEF PROCp(A)", "40 ENDPROC"}, EARGS, 10},
		{
			"error inside nested loops",
			[]string{"10 FOR I%=1 TO 2", "20 PROCdeep", "30 NEXT", "40 END", "50 DEF PROCdeep", "60 LOCAL J%", "70 REPEAT", "80 J%=1/0", "90 UNTIL TRUE"},
			EDIVZERO, 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _, err := runProgram(t, tt.lines...)

			if !isError(err, tt.want) {
				t.Fatalf("RUN error = %v, want %s", err, tt.want)
			}

			if e := err.(*basicError); e.line != tt.line {
				t.Errorf("error line = %d, want %d", e.line, tt.line)
			}

			if in.ws.sp != in.ws.himem {
				t.Errorf("stack not unwound: sp %d, himem %d", in.ws.sp, in.ws.himem)
			}

			if in.errLine != tt.line {
				t.Errorf("ERL = %d, want %d", in.errLine, tt.line)
			}
		})
	}
}

func TestCrawlouts(t *testing.T) {

	_, out, err := runProgram(t, "10 PRINT \"a\"", "20 STOP", "30 PRINT \"b\"")

	c, ok := err.(*crawlout)
	if !ok || !c.stop || c.line != 20 {
		t.Fatalf("STOP gave %v", err)
	}

	if out != "a\n" {
		t.Errorf("output = %q", out)
	}

	in, con := newTestInterp(t)

	status, quit := in.runCommand("QUIT 3")
	if !quit || status != 3 {
		t.Errorf("QUIT 3 = (%d, %t)", status, quit)
	}

	status, quit = in.runCommand("PRINT 1/0")
	if quit || status != 18 {
		t.Errorf("PRINT 1/0 = (%d, %t)", status, quit)
	}

	if got := con.out.String(); got != EDIVZERO+"\n" {
		t.Errorf("report = %q", got)
	}
}

func TestUserErrorAtPrompt(t *testing.T) {

	in, _ := newTestInterp(t)

	err := in.executeLine(`ERROR 123, "boom"`)

	e, ok := err.(*basicError)
	if !ok || e.number != 123 || e.msg != "boom" {
		t.Fatalf("ERROR gave %v", err)
	}

	if in.errNo != 123 || in.errMsg != "boom" {
		t.Errorf("ERR/REPORT = %d %q", in.errNo, in.errMsg)
	}
}

func TestCommandsOnlyAtPrompt(t *testing.T) {

	_, _, err := runProgram(t, "10 LIST")

	if !isError(err, ECOMMAND) {
		t.Errorf("LIST in a program gave %v", err)
	}
}

func TestTrace(t *testing.T) {

	in, con := newTestInterp(t)

	enter(t, in, "10 PRINT 1", "20 GOTO 40", "30 PRINT 3", "40 PRINT 4", "TRACE ON")

	con.out.Reset()

	err := in.executeLine("RUN")
	if _, ok := err.(*crawlout); !ok {
		t.Fatalf("RUN: %v", err)
	}

	if got, want := con.out.String(), "[10]1\n[20][40]4\n"; got != want {
		t.Errorf("trace output = %q, want %q", got, want)
	}
}

func TestHelp(t *testing.T) {

	in, con := newTestInterp(t)

	enter(t, in, "HELP FOR")

	if got := con.out.String(); !strings.HasPrefix(got, "FOR: Counted loop") {
		t.Errorf("HELP FOR = %q", got)
	}

	con.out.Reset()
	enter(t, in, "HELP")

	got := con.out.String()
	for _, kw := range []string{"ENDWHILE", "PRINT", "RENUMBER"} {
		if !strings.Contains(got, kw) {
			t.Errorf("HELP listing is missing %s", kw)
		}
	}
}

func TestClearVariablesOnRun(t *testing.T) {

	in, _ := newTestInterp(t)

	enter(t, in, "A%=5", "10 PRINT A%")

	err := in.executeLine("RUN")

	if !isError(err, ENOSUCHVAR) {
		t.Errorf("RUN kept A%%: %v", err)
	}
}

func TestClearResetsHeap(t *testing.T) {

	in, _, err := runProgram(t,
		"10 A$=\"hello\": DIM B% 100",
		"20 CLEAR",
	)
	if err != nil {
		t.Fatalf("RUN: %v", err)
	}

	ws := in.ws

	if ws.vartop != ws.lomem {
		t.Errorf("CLEAR left vartop %d, lomem %d", ws.vartop, ws.lomem)
	}

	if _, ok := in.lookupVar("A$"); ok {
		t.Errorf("A$ survived CLEAR")
	}

	p, err := ws.allocate(16)
	if err != nil {
		t.Fatal(err)
	}

	if p != ws.lomem {
		t.Errorf("allocation after CLEAR at %d, want lomem %d", p, ws.lomem)
	}
}
