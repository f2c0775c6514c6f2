package main

import (
	"sort"
)

//
// Control tokens below 0x20.  The source stream only ever contains
// tokLineNum; the rest belong to the executable stream
//
//   tokLineNum    u16 line number
//   tokXLineNum   u32 line number, u16 offset of the source token
//   tokLineRef    u32 record offset, u16 offset of the source token
//   tokIntCon     i32
//   tokFloatCon   f64
//   tokStrCon     u16 length, bytes
//   tokXVar ...   u32 address (0 until resolved), u8 length, name
//

const (
	tokEnd       = 0x00
	tokLineNum   = 0x01
	tokXLineNum  = 0x02
	tokLineRef   = 0x03
	tokIntCon    = 0x04
	tokFloatCon  = 0x05
	tokStrCon    = 0x06
	tokXVar      = 0x07
	tokVar       = 0x08
	tokXProc     = 0x09
	tokProcRef   = 0x0A
	tokXFn       = 0x0B
	tokFnRef     = 0x0C
	tokHiddenEnd = 0x0E
	tokLE        = 0x10
	tokGE        = 0x11
	tokNE        = 0x12
)

//
// Keywords.  Functions that take their argument list directly carry
// the opening parenthesis in their name (LEFT$( and friends)
//

const (
	tokAND = 0x80 + iota
	tokDIV
	tokEOR
	tokMOD
	tokOR
	tokNOT
	tokERROR
	tokOFF
	tokSTEP
	tokELSE
	tokTHEN
	tokTO
	tokTRUE
	tokFALSE
	tokPI
	tokABS
	tokASC
	tokCHRS
	tokINT
	tokLEN
	tokSQR
	tokSGN
	tokSTRS
	tokVAL
	tokLEFTS
	tokMIDS
	tokRIGHTS
	tokINSTR
	tokSTRINGS
	tokRND
	tokSIN
	tokCOS
	tokTAN
	tokATN
	tokEXP
	tokLN
	tokLOG
	tokERR
	tokERL
	tokTIME
	tokPAGE
	tokTOP
	tokLOMEM
	tokHIMEM
	tokDEF
	tokPROC
	tokFN
	tokLOCAL
	tokENDPROC
	tokRETURN
	tokGOSUB
	tokGOTO
	tokIF
	tokFOR
	tokNEXT
	tokREPEAT
	tokUNTIL
	tokWHILE
	tokENDWHILE
	tokPRINT
	tokLET
	tokDIM
	tokDATA
	tokREAD
	tokRESTORE
	tokREM
	tokEND
	tokSTOP
	tokQUIT
	tokON
	tokCLEAR
	tokREPORT
	tokLIBRARY
	tokINSTALL
	tokTRACE
	tokLIST
	tokNEW
	tokOLD
	tokRUN
	tokRENUMBER
	tokDELETE
	tokLOAD
	tokSAVE
	tokHELP
	tokLastKeyword
)

//
// Keyword flags
//

const (
	kwConditional = 1 << iota // not a keyword when followed by a name character
	kwLineNum                 // line numbers may follow
	kwRestOfLine              // the rest of the line is kept verbatim
	kwName                    // a PROC/FN name follows directly
	kwCommand                 // only valid at the prompt
)

type keyword struct {
	name  string
	token byte
	flags int
}

var keywords = []keyword{
	{"AND", tokAND, kwConditional},
	{"DIV", tokDIV, kwConditional},
	{"EOR", tokEOR, kwConditional},
	{"MOD", tokMOD, kwConditional},
	{"OR", tokOR, kwConditional},
	{"NOT", tokNOT, kwConditional},
	{"ERROR", tokERROR, kwConditional},
	{"OFF", tokOFF, kwConditional},
	{"STEP", tokSTEP, kwConditional},
	{"ELSE", tokELSE, kwConditional | kwLineNum},
	{"THEN", tokTHEN, kwConditional | kwLineNum},
	{"TO", tokTO, kwConditional},
	{"TRUE", tokTRUE, kwConditional},
	{"FALSE", tokFALSE, kwConditional},
	{"PI", tokPI, kwConditional},
	{"ABS", tokABS, kwConditional},
	{"ASC", tokASC, kwConditional},
	{"CHR$", tokCHRS, 0},
	{"INT", tokINT, kwConditional},
	{"LEN", tokLEN, kwConditional},
	{"SQR", tokSQR, kwConditional},
	{"SGN", tokSGN, kwConditional},
	{"STR$", tokSTRS, 0},
	{"VAL", tokVAL, kwConditional},
	{"LEFT$(", tokLEFTS, 0},
	{"MID$(", tokMIDS, 0},
	{"RIGHT$(", tokRIGHTS, 0},
	{"INSTR(", tokINSTR, 0},
	{"STRING$(", tokSTRINGS, 0},
	{"RND", tokRND, kwConditional},
	{"SIN", tokSIN, kwConditional},
	{"COS", tokCOS, kwConditional},
	{"TAN", tokTAN, kwConditional},
	{"ATN", tokATN, kwConditional},
	{"EXP", tokEXP, kwConditional},
	{"LN", tokLN, kwConditional},
	{"LOG", tokLOG, kwConditional},
	{"ERR", tokERR, kwConditional},
	{"ERL", tokERL, kwConditional},
	{"TIME", tokTIME, kwConditional},
	{"PAGE", tokPAGE, kwConditional},
	{"TOP", tokTOP, kwConditional},
	{"LOMEM", tokLOMEM, kwConditional},
	{"HIMEM", tokHIMEM, kwConditional},
	{"DEF", tokDEF, 0},
	{"PROC", tokPROC, kwName},
	{"FN", tokFN, kwName},
	{"LOCAL", tokLOCAL, kwConditional},
	{"ENDPROC", tokENDPROC, kwConditional},
	{"RETURN", tokRETURN, kwConditional},
	{"GOSUB", tokGOSUB, kwConditional | kwLineNum},
	{"GOTO", tokGOTO, kwConditional | kwLineNum},
	{"IF", tokIF, kwConditional},
	{"FOR", tokFOR, kwConditional},
	{"NEXT", tokNEXT, kwConditional},
	{"REPEAT", tokREPEAT, kwConditional},
	{"UNTIL", tokUNTIL, kwConditional},
	{"WHILE", tokWHILE, kwConditional},
	{"ENDWHILE", tokENDWHILE, kwConditional},
	{"PRINT", tokPRINT, kwConditional},
	{"LET", tokLET, kwConditional},
	{"DIM", tokDIM, kwConditional},
	{"DATA", tokDATA, kwRestOfLine},
	{"READ", tokREAD, kwConditional},
	{"RESTORE", tokRESTORE, kwConditional | kwLineNum},
	{"REM", tokREM, kwRestOfLine},
	{"END", tokEND, kwConditional},
	{"STOP", tokSTOP, kwConditional},
	{"QUIT", tokQUIT, kwConditional},
	{"ON", tokON, kwConditional},
	{"CLEAR", tokCLEAR, kwConditional},
	{"REPORT", tokREPORT, kwConditional},
	{"LIBRARY", tokLIBRARY, kwConditional},
	{"INSTALL", tokINSTALL, kwConditional},
	{"TRACE", tokTRACE, kwConditional},
	{"LIST", tokLIST, kwConditional | kwCommand},
	{"NEW", tokNEW, kwConditional | kwCommand},
	{"OLD", tokOLD, kwConditional | kwCommand},
	{"RUN", tokRUN, kwConditional},
	{"RENUMBER", tokRENUMBER, kwConditional | kwCommand},
	{"DELETE", tokDELETE, kwConditional | kwCommand},
	{"LOAD", tokLOAD, kwConditional | kwCommand},
	{"SAVE", tokSAVE, kwConditional | kwCommand},
	{"HELP", tokHELP, kwConditional | kwCommand},
}

//
// Lookup tables built from keywords.  byLetter holds the candidates for
// each initial letter, longest first, so TOP wins over TO
//

var tokenNames [256]string
var tokenFlags [256]int
var byLetter [26][]keyword

func initTokens() {

	for _, kw := range keywords {
		tokenNames[kw.token] = kw.name
		tokenFlags[kw.token] = kw.flags

		l := kw.name[0] - 'A'
		byLetter[l] = append(byLetter[l], kw)
	}

	for i := range byLetter {
		sort.SliceStable(byLetter[i], func(a, b int) bool {
			return len(byLetter[i][a].name) > len(byLetter[i][b].name)
		})
	}
}

func isKeyword(b byte) bool {

	return b >= 0x80 && b < tokLastKeyword
}

func getTokenName(b byte) string {

	return tokenNames[b]
}

func isNameStart(c byte) bool {

	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_' || c == '`'
}

func isNameChar(c byte) bool {

	return isNameStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {

	return c >= '0' && c <= '9'
}

func isVarToken(b byte) bool {

	return b == tokXVar || b == tokVar
}

func isProcToken(b byte) bool {

	return b == tokXProc || b == tokProcRef
}

func isFnToken(b byte) bool {

	return b == tokXFn || b == tokFnRef
}

func isLineToken(b byte) bool {

	return b == tokXLineNum || b == tokLineRef
}
