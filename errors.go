package main

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

//
// Manifest constants for the interpreter's error messages.  The
// numbers follow the BBC BASIC numbering where one exists.  Fatal
// errors share number 0 and so are absent from errorMapRev
//

const (
	ENOROOM        = "No room"
	ESTACKFULL     = "Stack full"
	EBADPROG       = "Bad program"
	EBROKEN        = "Interpreter state is inconsistent"
	ERENUMBER      = "Line numbers would exceed 65279 after renumbering"
	ELINETOOLONG   = "Line too long"
	ELINENO        = "Line number out of range"
	EFILENOTFOUND  = "File or path not found"
	EREADFAIL      = "Could not read from file"
	EWRITEFAIL     = "Could not write to file"
	EOPENOUT       = "Could not open file for output"
	EFILEIO        = "File operation failed"
	EESCAPE        = "Escape"
	EMISTAKE       = "Mistake"
	ESYNTAX        = "Syntax error"
	ETYPE          = "Type mismatch"
	ENOSUCHVAR     = "No such variable"
	ENOSUCHLINE    = "No such line"
	ENOTINFOR      = "Not in a FOR loop"
	ENOTINWHILE    = "Not in a WHILE loop"
	ENOTINREPEAT   = "Not in a REPEAT loop"
	ENOGOSUB       = "No GOSUB"
	ENOTINPROC     = "Not in a procedure"
	ENOTINFN       = "Not in a function"
	ENOSUCHPROC    = "No such PROC or FN"
	EARGS          = "Incorrect number of arguments"
	EDIVZERO       = "Division by zero"
	ELOGRANGE      = "Logarithm range"
	ENEGROOT       = "Negative root"
	ETOOBIG        = "Number too big"
	ESUBSCRIPT     = "Subscript out of range"
	EBADDIM        = "Bad DIM statement"
	EARRAY         = "Array not dimensioned"
	ESTRINGLEN     = "String too long"
	EOUTOFDATA     = "Out of DATA"
	EMISSINGEQ     = "Missing ="
	EMISSINGRPAREN = "Missing )"
	EMISSINGCOMMA  = "Missing ,"
	EMISSINGTO     = "Missing TO"
	ENOTLOCAL      = "Not LOCAL"
	EONRANGE       = "ON range"
	ENOENDWHILE    = "Cannot find matching ENDWHILE"
	ECOMMAND       = "Command cannot be used here"
	EADDRESS       = "Address out of range"
	EBADLIB        = "Bad library"
	ENOTINSTALLED  = "Library is already loaded"
)

type errKind int

const (
	kindLanguage errKind = iota
	kindNoRoom
	kindBadProgram
	kindFileIO
	kindRenumber
	kindBroken
	kindEscape
)

//
// A BASIC error.  line is the BASIC line number the error was raised
// at (ERL).  For Broken errors subsystem names the component that
// detected the inconsistency and file/srcLine locate the check
//

type basicError struct {
	number    int
	msg       string
	kind      errKind
	line      int
	subsystem string
	file      string
	srcLine   int
}

func (e *basicError) Error() string {

	if e.kind == kindBroken {
		return fmt.Sprintf("%s (%s: %s at %s line %d)", EBROKEN, e.subsystem,
			e.msg, filepath.Base(e.file), e.srcLine)
	}

	return e.msg
}

//
// END, STOP, QUIT and RUN leave the statement loop by panicking with one of
// these, the same way errors do
//

type crawlout struct {
	stop bool
	quit bool
	run  bool
	code int
	line int
}

func (c *crawlout) Error() string {

	if c.stop {
		return fmt.Sprintf("STOP at line %d", c.line)
	}

	return "END"
}

var errorMap = make(map[string]int)
var errorMapRev = make(map[int]string)
var errorKinds = make(map[string]errKind)

func initErrors() {

	errorMap[ENOROOM] = 0
	errorMap[ESTACKFULL] = 0
	errorMap[EBADPROG] = 0
	errorMap[EBROKEN] = 0
	errorMap[ERENUMBER] = 0
	errorMap[ELINETOOLONG] = 0
	errorMap[ELINENO] = 0
	errorMap[EFILENOTFOUND] = 214
	errorMap[EREADFAIL] = 189
	errorMap[EWRITEFAIL] = 190
	errorMap[EOPENOUT] = 192
	errorMap[EFILEIO] = 191
	errorMap[EESCAPE] = 17
	errorMap[EMISTAKE] = 4
	errorMap[ESYNTAX] = 16
	errorMap[ETYPE] = 6
	errorMap[ENOSUCHVAR] = 26
	errorMap[ENOSUCHLINE] = 41
	errorMap[ENOTINFOR] = 32
	errorMap[ENOTINWHILE] = 47
	errorMap[ENOTINREPEAT] = 43
	errorMap[ENOGOSUB] = 38
	errorMap[ENOTINPROC] = 13
	errorMap[ENOTINFN] = 7
	errorMap[ENOSUCHPROC] = 29
	errorMap[EARGS] = 31
	errorMap[EDIVZERO] = 18
	errorMap[ELOGRANGE] = 22
	errorMap[ENEGROOT] = 21
	errorMap[ETOOBIG] = 20
	errorMap[ESUBSCRIPT] = 15
	errorMap[EBADDIM] = 10
	errorMap[EARRAY] = 14
	errorMap[ESTRINGLEN] = 19
	errorMap[EOUTOFDATA] = 42
	errorMap[EMISSINGEQ] = 44
	errorMap[EMISSINGRPAREN] = 27
	errorMap[EMISSINGCOMMA] = 5
	errorMap[EMISSINGTO] = 36
	errorMap[ENOTLOCAL] = 12
	errorMap[EONRANGE] = 40
	errorMap[ENOENDWHILE] = 48
	errorMap[ECOMMAND] = 37
	errorMap[EADDRESS] = 8
	errorMap[EBADLIB] = 49
	errorMap[ENOTINSTALLED] = 50

	for k, v := range errorMap {
		if v != 0 {
			errorMapRev[v] = k
		}
	}

	errorKinds[ENOROOM] = kindNoRoom
	errorKinds[ESTACKFULL] = kindNoRoom
	errorKinds[EBADPROG] = kindBadProgram
	errorKinds[EBROKEN] = kindBroken
	errorKinds[ERENUMBER] = kindRenumber
	errorKinds[EFILENOTFOUND] = kindFileIO
	errorKinds[EREADFAIL] = kindFileIO
	errorKinds[EWRITEFAIL] = kindFileIO
	errorKinds[EOPENOUT] = kindFileIO
	errorKinds[EFILEIO] = kindFileIO
	errorKinds[EESCAPE] = kindEscape
}

//
// User defined messages (ERROR n, "text") are not in the map, so they
// get -1 here and the caller supplies the number
//

func getErrorNo(msg string) int {

	err, ok := errorMap[msg]
	if ok {
		return err
	} else {
		return -1
	}
}

func getErrorMsg(err int) string {

	errMsg, ok := errorMapRev[err]
	if !ok {
		return fmt.Sprintf("Error %d", err)
	}

	return errMsg
}

//
// Build an error value for one of the messages above.  Extra text
// (file names and so on) can be appended with args
//

func newError(msg string, args ...any) *basicError {

	e := &basicError{number: getErrorNo(msg), msg: msg, kind: errorKinds[msg]}
	if e.number < 0 {
		e.number = 0
	}

	if len(args) > 0 {
		e.msg = msg + " " + strings.TrimSpace(fmt.Sprint(args...))
	}

	return e
}

func userError(number int, msg string) *basicError {

	return &basicError{number: number, msg: msg, kind: kindLanguage}
}

//
// A consistency check failed.  We find the filename and line number of
// our caller so the report says where the check lives
//

func brokenError(subsystem, msg string) *basicError {

	e := &basicError{msg: msg, kind: kindBroken, subsystem: subsystem}

	if _, file, line, ok := runtime.Caller(1); ok {
		e.file = file
		e.srcLine = line
	}

	return e
}

//
// Test whether err is a BASIC error of the given message
//

func isError(err error, msg string) bool {

	e, ok := err.(*basicError)

	return ok && (e.msg == msg || strings.HasPrefix(e.msg, msg+" "))
}

func errorKind(err error) errKind {

	if e, ok := err.(*basicError); ok {
		return e.kind
	}

	return kindLanguage
}
