package main

import (
	"bufio"
	"github.com/danswartzendruber/avl"
	"github.com/danswartzendruber/liner"
	"os"
	"sync/atomic"
	"time"
)

//
// Constants
//

const VERSION = "1.0.0"

const basFileSuffix = ".bas"

const myPrompt = ">"

//
// Workspace layout.  The arena starts with a four byte marker, the
// program follows it and the heap follows the program.  The stack
// grows down from himem
//

const startMarker = 0xD7C1C7C5
const markerSize = 4

const align = 8

const stackBuffer = 512

const defaultWorkspaceKB = 640
const minWorkspaceKB = 16
const maxWorkspaceKB = 1024 * 1024

const cmdBufSize = maxLineLen + align

//
// Line records
//

const maxLineNo = 65279
const endMarker = 0xFF00
const cmdLineNo = 0xFFFE

const maxLineLen = 1024
const lineHeaderSize = 6
const minLineLen = lineHeaderSize + 1
const sentinelLen = 8

const listNumWidth = 5

//
// Language limits
//

const maxStringLen = 65535
const maxDims = 10
const maxNameLen = 255

const opstackSize = 24
const opstackEntrySize = 24

const zoneWidth = 10

const boolTrue int32 = -1
const boolFalse int32 = 0

const centiTick = 20 * time.Millisecond

//
// The array pointer of a LOCAL array that has not been DIMmed yet.
// Offset 1 is inside the start marker so it can never be a heap block
//

const localArrayPending offset = 1

const nilOffset offset = 0

//
// I/O mode definitions
//

const (
	IOREAD = 1 << iota
	IOWRITE
)

//
// Type definitions
//

type offset int

type file struct {
	filename string
	osFile   *os.File
	reader   *bufio.Reader
	writer   *bufio.Writer
	iomode   int
}

//
// Variable kinds.  The kind of a variable follows from its name: a
// trailing '%' is an integer, a trailing '$' a string, and a trailing
// '(' an array of the preceding kind
//

type varKind int

const (
	varFloat varKind = iota
	varInt
	varString
	varFloatArray
	varIntArray
	varStringArray
	varProc
	varFn
)

type valueKind int

const (
	valInt valueKind = iota
	valFloat
	valString
	valArray
)

//
// A value lifted off the stack into Go.  Array values carry the
// address of the variable that owns the array block
//

type value struct {
	kind valueKind
	i    int32
	f    float64
	s    string
	arr  offset
	ak   varKind
}

type errorHandler struct {
	set   bool
	local bool
	pc    offset
	line  offset
	sp    offset
}

//
// Everything the interpreter kernel owns.  One of these is created per
// session and passed to every component, so tests can run several side
// by side
//

type interp struct {
	ws  *workspace
	con console
	cfg *config

	pc      offset
	curLine offset
	base    offset
	running bool

	symtab      *avl.AvlNode
	defsScanned bool
	libs        libraryList

	errh    errorHandler
	errNo   int
	errMsg  string
	errLine int

	dataLine offset
	dataPtr  offset

	fnReturn  bool
	fnValue   value
	procDepth int
	exprDepth int

	lineRefs    bool
	nameRefs    bool
	lastInsert  offset
	oldHeader   [sentinelLen]byte
	oldValid    bool
	badProgram  bool
	quitAtEnd   bool
	programName string

	column int

	rndSeed    uint32
	timeOffset int64

	traceExec  bool
	traceDump  bool
	printStats bool
}

type globals struct {
	interrupted atomic.Bool
	centiTime   atomic.Int64
	interactive bool
	exiting     bool
	parserLiner *liner.State
	window      struct {
		rows int
		cols int
	}
	loginTime time.Time
	session   *interp
}

type statistics struct {
	elapsed       time.Time
	utime         int64
	stime         int64
	numStatements int64
}

//
// Global variables
//

var g globals

var s statistics
