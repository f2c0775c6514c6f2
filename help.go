package main

import (
	"sort"
	"strings"
)

//
// One line of help per keyword.  Keywords with no entry here are
// operators or functions, listed but not described
//

var keywordHelp = map[byte]string{
	tokDEF:      "Define a procedure (DEF PROCname) or function (DEF FNname)",
	tokDELETE:   "Delete a range of program lines: DELETE first,last",
	tokDIM:      "Create an array, or reserve a block of bytes: DIM a(10), b% 100",
	tokEND:      "Stop the program quietly",
	tokENDPROC:  "Return from a procedure",
	tokFOR:      "Counted loop: FOR var = start TO end [STEP step] ... NEXT",
	tokGOSUB:    "Call the subroutine at a line, coming back on RETURN",
	tokGOTO:     "Continue at a line",
	tokHELP:     "List the keywords, or describe one: HELP [keyword]",
	tokIF:       "IF condition [THEN] statements [ELSE statements]",
	tokINSTALL:  "Load a library for the rest of the session",
	tokLIBRARY:  "Load a library into the heap, until the next CLEAR or RUN",
	tokLIST:     "List the program: LIST [first][,last]",
	tokLOAD:     "Replace the program with one read from a file",
	tokLOCAL:    "Make variables local to the current procedure or function",
	tokNEW:      "Discard the program",
	tokOLD:      "Recover the program after NEW",
	tokON:       "ON ERROR [LOCAL] handler, ON ERROR OFF, or ON expr GOTO/GOSUB lines",
	tokQUIT:     "Leave the interpreter: QUIT [status]",
	tokREAD:     "Read values from DATA statements",
	tokRENUMBER: "Renumber the program: RENUMBER [start][,step]",
	tokREPEAT:   "Loop until a condition holds: REPEAT ... UNTIL condition",
	tokREPORT:   "Print the message of the last error",
	tokRESTORE:  "Set the next DATA item to read: RESTORE [line]",
	tokRUN:      "Clear the variables and run the program",
	tokSAVE:     "Write the program to a file",
	tokSTOP:     "Stop the program, reporting the line",
	tokTRACE:    "TRACE ON, TRACE OFF, TRACE DUMP or TRACE STATS",
	tokWHILE:    "Loop while a condition holds: WHILE condition ... ENDWHILE",
}

func (in *interp) executeHelp() {

	ws := in.ws
	c := ws.mem[in.pc]

	if atStatementEnd(c) {
		in.listKeywords()
		return
	}

	var tok byte

	switch {
	case isKeyword(c):
		tok = c
		in.pc++

	case isVarToken(c):
		name := strings.ToUpper(tokenName(ws.mem, in.pc))
		in.pc += offset(tokenSize(ws.mem, in.pc))
		for _, kw := range keywords {
			if strings.TrimSuffix(kw.name, "(") == name {
				tok = kw.token
			}
		}
		if tok == 0 {
			in.printf("No help for %s\n", name)
			return
		}

	default:
		runtimeError(ESYNTAX)
	}

	name := strings.TrimSuffix(getTokenName(tok), "(")

	if text, ok := keywordHelp[tok]; ok {
		in.printf("%s: %s\n", name, text)
	} else {
		in.printf("%s: no further help\n", name)
	}
}

func (in *interp) listKeywords() {

	names := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		names = append(names, strings.TrimSuffix(kw.name, "("))
	}

	sort.Strings(names)

	cols := in.con.width()
	if cols <= 0 {
		cols = 80
	}

	for _, n := range names {
		if in.column+zoneWidth > cols {
			in.printf("\n")
		}
		in.printf("%-*s", zoneWidth, n)
	}

	in.printf("\n")
}
