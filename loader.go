package main

import (
	"bufio"
	"bytes"
	"github.com/klauspost/compress/gzip"
	"github.com/tliron/commonlog"
	"io"
	"sort"
	"strconv"
	"strings"
)

var loaderLog = commonlog.GetLogger("brandy.loader")

//
// File formats the loader understands
//

const (
	formatText = iota
	formatAcorn
	formatRussell
	formatGzip
	formatScramble
)

var formatNames = []string{"text", "Acorn", "Russell", "gzip", "scrambled"}

const identifyLen = 260

const maxLoadSize = 16 * 1024 * 1024

const bbcLineToken = 0x8D

type loadInfo struct {
	format     int
	lines      int
	unnumbered bool
	quitAtEnd  bool
}

type decodedLine struct {
	number int
	text   string
}

//
// Tokens of the Acorn and Russell binary formats.  0xC6, 0xC7 and 0xC8
// prefix a second byte that selects from the extended tables
//

var acornTokens = map[byte]string{
	0x7F: "OTHERWISE",
	0x80: "AND", 0x81: "DIV", 0x82: "EOR", 0x83: "MOD", 0x84: "OR",
	0x85: "ERROR", 0x86: "LINE", 0x87: "OFF", 0x88: "STEP", 0x89: "SPC",
	0x8A: "TAB(", 0x8B: "ELSE", 0x8C: "THEN", 0x8E: "OPENIN", 0x8F: "PTR",
	0x90: "PAGE", 0x91: "TIME", 0x92: "LOMEM", 0x93: "HIMEM", 0x94: "ABS",
	0x95: "ACS", 0x96: "ADVAL", 0x97: "ASC", 0x98: "ASN", 0x99: "ATN",
	0x9A: "BGET", 0x9B: "COS", 0x9C: "COUNT", 0x9D: "DEG", 0x9E: "ERL",
	0x9F: "ERR", 0xA0: "EVAL", 0xA1: "EXP", 0xA2: "EXT", 0xA3: "FALSE",
	0xA4: "FN", 0xA5: "GET", 0xA6: "INKEY", 0xA7: "INSTR(", 0xA8: "INT",
	0xA9: "LEN", 0xAA: "LN", 0xAB: "LOG", 0xAC: "NOT", 0xAD: "OPENUP",
	0xAE: "OPENOUT", 0xAF: "PI", 0xB0: "POINT(", 0xB1: "POS", 0xB2: "RAD",
	0xB3: "RND", 0xB4: "SGN", 0xB5: "SIN", 0xB6: "SQR", 0xB7: "TAN",
	0xB8: "TO", 0xB9: "TRUE", 0xBA: "USR", 0xBB: "VAL", 0xBC: "VPOS",
	0xBD: "CHR$", 0xBE: "GET$", 0xBF: "INKEY$", 0xC0: "LEFT$(",
	0xC1: "MID$(", 0xC2: "RIGHT$(", 0xC3: "STR$", 0xC4: "STRING$(",
	0xC5: "EOF", 0xC9: "WHEN", 0xCA: "OF", 0xCB: "ENDCASE", 0xCC: "ELSE",
	0xCD: "ENDIF", 0xCE: "ENDWHILE", 0xCF: "PTR", 0xD0: "PAGE", 0xD1: "TIME",
	0xD2: "LOMEM", 0xD3: "HIMEM", 0xD4: "SOUND", 0xD5: "BPUT", 0xD6: "CALL",
	0xD7: "CHAIN", 0xD8: "CLEAR", 0xD9: "CLOSE", 0xDA: "CLG", 0xDB: "CLS",
	0xDC: "DATA", 0xDD: "DEF", 0xDE: "DIM", 0xDF: "DRAW", 0xE0: "END",
	0xE1: "ENDPROC", 0xE2: "ENVELOPE", 0xE3: "FOR", 0xE4: "GOSUB",
	0xE5: "GOTO", 0xE6: "GCOL", 0xE7: "IF", 0xE8: "INPUT", 0xE9: "LET",
	0xEA: "LOCAL", 0xEB: "MODE", 0xEC: "MOVE", 0xED: "NEXT", 0xEE: "ON",
	0xEF: "VDU", 0xF0: "PLOT", 0xF1: "PRINT", 0xF2: "PROC", 0xF3: "READ",
	0xF4: "REM", 0xF5: "REPEAT", 0xF6: "REPORT", 0xF7: "RESTORE",
	0xF8: "RETURN", 0xF9: "RUN", 0xFA: "STOP", 0xFB: "COLOUR", 0xFC: "TRACE",
	0xFD: "UNTIL", 0xFE: "WIDTH", 0xFF: "OSCLI",
}

var acornExtended = map[byte]map[byte]string{
	0xC6: {0x8E: "SUM", 0x8F: "BEAT"},
	0xC7: {
		0x8E: "APPEND", 0x8F: "AUTO", 0x90: "CRUNCH", 0x91: "DELETE",
		0x92: "EDIT", 0x93: "HELP", 0x94: "LIST", 0x95: "LOAD", 0x96: "LVAR",
		0x97: "NEW", 0x98: "OLD", 0x99: "RENUMBER", 0x9A: "SAVE",
		0x9B: "TEXTLOAD", 0x9C: "TEXTSAVE", 0x9D: "TWIN", 0x9E: "TWINO",
		0x9F: "INSTALL",
	},
	0xC8: {
		0x8E: "CASE", 0x8F: "CIRCLE", 0x90: "FILL", 0x91: "ORIGIN",
		0x92: "POINT", 0x93: "RECTANGLE", 0x94: "SWAP", 0x95: "WHILE",
		0x96: "WAIT", 0x97: "MOUSE", 0x98: "QUIT", 0x99: "SYS",
		0x9A: "INSTALL", 0x9B: "LIBRARY", 0x9C: "TINT", 0x9D: "ELLIPSE",
		0x9E: "BEATS", 0x9F: "TEMPO", 0xA0: "VOICES", 0xA1: "VOICE",
		0xA2: "STEREO", 0xA3: "OVERLAY",
	},
}

//
// The scrambled format is text passed through a fixed byte
// substitution.  scrambleTable maps plain to scrambled bytes and
// unscrambleTable undoes it
//

var scrambleMagic = []byte{0x23, 0xFA, 0xC8}

var scrambleTable [256]byte
var unscrambleTable [256]byte

func initScramble() {

	for i := 0; i < 256; i++ {
		b := byte(i*0x6D + 0x35)
		scrambleTable[i] = b
		unscrambleTable[b] = byte(i)
	}
}

func scramble(plain []byte) []byte {

	out := append([]byte{}, scrambleMagic...)

	for _, b := range plain {
		out = append(out, scrambleTable[b])
	}

	return out
}

//
// Work out what kind of file we are looking at from its first bytes
//

func identify(data []byte) int {

	head := data[:min(len(data), identifyLen)]

	switch {
	case len(head) >= 3 && head[0] == 0x1F && head[1] == 0x8B && head[2] == 0x08:
		return formatGzip

	case bytes.HasPrefix(head, scrambleMagic):
		return formatScramble

	case looksAcorn(head):
		return formatAcorn

	case looksText(head):
		return formatText

	case looksRussell(head):
		return formatRussell
	}

	return formatText
}

func looksText(head []byte) bool {

	for _, b := range head {
		if b < 0x20 && b != '\t' && b != '\r' && b != '\n' {
			return false
		}
	}

	return true
}

//
// Acorn records: <CR> <hi> <lo> <len> <body>, ending <CR> <FF>
//

func looksAcorn(head []byte) bool {

	if len(head) < 2 || head[0] != 0x0D {
		return false
	}

	for p := 0; p < len(head); {
		if head[p] != 0x0D {
			return false
		}

		if p+1 >= len(head) || head[p+1] == 0xFF || p+3 >= len(head) {
			return true
		}

		ln := int(head[p+3])
		if ln < 4 {
			return false
		}

		p += ln
	}

	return true
}

//
// Russell records: <len> <lo> <hi> <body> <CR>, ending with a zero
// length byte
//

func looksRussell(head []byte) bool {

	records := 0

	for p := 0; p < len(head); {
		ln := int(head[p])

		if ln == 0 {
			return records > 0
		}

		if ln < 4 {
			return false
		}

		if p+ln-1 >= len(head) {
			return records > 0
		}

		if head[p+ln-1] != 0x0D {
			return false
		}

		records++
		p += ln
	}

	return records > 0
}

//
// Turn a file image into numbered text lines.  Wrappers (gzip,
// scrambling) are removed first and the result identified again
//

func decodeProgram(data []byte, info *loadInfo) ([]decodedLine, error) {

	for unwrapped := 0; ; unwrapped++ {
		info.format = identify(data)

		if unwrapped > 2 && (info.format == formatGzip || info.format == formatScramble) {
			return nil, newError(EBADPROG)
		}

		switch info.format {
		case formatGzip:
			zr, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, newError(EREADFAIL)
			}
			data, err = io.ReadAll(io.LimitReader(zr, maxLoadSize))
			zr.Close()
			if err != nil {
				return nil, newError(EREADFAIL)
			}
			loaderLog.Debugf("gzip wrapper removed, %d bytes", len(data))

		case formatScramble:
			plain := make([]byte, len(data)-len(scrambleMagic))
			for i, b := range data[len(scrambleMagic):] {
				plain[i] = unscrambleTable[b]
			}
			data = plain
			loaderLog.Debugf("scrambled file decoded, %d bytes", len(data))

			lines, err := decodeText(data, info)
			info.format = formatScramble
			return lines, err

		case formatAcorn:
			return decodeAcorn(data)

		case formatRussell:
			return decodeRussell(data)

		default:
			return decodeText(data, info)
		}
	}
}

//
// Plain text.  A first line starting with '#' is skipped and asks for
// the program to quit when it ends.  If the first real line has no
// number the whole file is unnumbered and numbered 1, 2, 3...
//

func decodeText(data []byte, info *loadInfo) ([]decodedLine, error) {

	var lines []decodedLine

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	rawLines := strings.Split(text, "\n")

	if len(rawLines) > 0 && strings.HasPrefix(rawLines[0], "#") {
		info.quitAtEnd = true
		rawLines = rawLines[1:]
	}

	decided := false
	last := 0

	for _, raw := range rawLines {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		if !decided {
			_, _, numbered, _ := splitLineNumber(raw)
			info.unnumbered = !numbered
			decided = true
		}

		if info.unnumbered {
			last++
			if last > maxLineNo {
				return nil, newError(ELINENO)
			}
			lines = append(lines, decodedLine{number: last, text: raw})
			continue
		}

		n, rest, numbered, err := splitLineNumber(raw)
		if err != nil {
			return nil, err
		}

		if !numbered {
			n = last + 1
			if n > maxLineNo {
				return nil, newError(ELINENO)
			}
		}

		last = n
		lines = append(lines, decodedLine{number: n, text: rest})
	}

	return lines, nil
}

func decodeAcorn(data []byte) ([]decodedLine, error) {

	var lines []decodedLine

	for p := 0; ; {
		if p >= len(data) || data[p] != 0x0D {
			return nil, newError(EBADPROG)
		}

		if p+1 < len(data) && data[p+1] == 0xFF {
			return lines, nil
		}

		if p+4 > len(data) {
			return nil, newError(EBADPROG)
		}

		n := int(data[p+1])<<8 | int(data[p+2])
		ln := int(data[p+3])

		if ln < 4 || p+ln > len(data) || n > maxLineNo {
			return nil, newError(EBADPROG)
		}

		text, err := reformat(data[p+4 : p+ln])
		if err != nil {
			return nil, err
		}

		lines = append(lines, decodedLine{number: n, text: text})
		p += ln
	}
}

func decodeRussell(data []byte) ([]decodedLine, error) {

	var lines []decodedLine

	for p := 0; ; {
		if p >= len(data) {
			return nil, newError(EBADPROG)
		}

		ln := int(data[p])
		if ln == 0 {
			return lines, nil
		}

		if ln < 4 || p+ln > len(data) || data[p+ln-1] != 0x0D {
			return nil, newError(EBADPROG)
		}

		n := int(data[p+1]) | int(data[p+2])<<8
		if n > maxLineNo {
			return nil, newError(EBADPROG)
		}

		text, err := reformat(data[p+3 : p+ln-1])
		if err != nil {
			return nil, err
		}

		lines = append(lines, decodedLine{number: n, text: text})
		p += ln
	}
}

//
// Line numbers after GOTO and friends are stored as 0x8D and three
// bytes that spread the number over bits 0-5 of each
//

func decodeBBCLineNumber(n1, n2, n3 byte) int {

	n1 ^= 0x54
	lo := (n2 & 0x3F) | ((n1 << 2) & 0xC0)
	hi := (n3 & 0x3F) | ((n1 << 4) & 0xC0)

	return int(hi)<<8 | int(lo)
}

//
// Expand a binary line body to text with the foreign token table.  The
// result goes through our own tokenizer, so spaces are added where a
// keyword would otherwise run into a name
//

func reformat(body []byte) (string, error) {

	var sb strings.Builder

	quoted := false
	raw := false

	word := func(name string) {
		out := sb.String()
		if len(out) > 0 && isNameChar(out[len(out)-1]) {
			sb.WriteByte(' ')
		}
		sb.WriteString(name)
	}

	for i := 0; i < len(body); i++ {
		b := body[i]

		switch {
		case raw || (quoted && b != '"'):
			sb.WriteByte(b)

		case b == '"':
			quoted = !quoted
			sb.WriteByte(b)

		case b == bbcLineToken:
			if i+3 >= len(body) {
				return "", newError(EBADPROG)
			}
			sb.WriteString(strconv.Itoa(decodeBBCLineNumber(body[i+1], body[i+2], body[i+3])))
			i += 3

		case b >= 0xC6 && b <= 0xC8:
			if i+1 >= len(body) {
				return "", newError(EBADPROG)
			}
			name, ok := acornExtended[b][body[i+1]]
			if !ok {
				return "", newError(EBADPROG)
			}
			word(name)
			i++

		case b >= 0x7F:
			name, ok := acornTokens[b]
			if !ok {
				return "", newError(EBADPROG)
			}
			word(name)
			raw = b == 0xF4 || b == 0xDC
			if !raw && i+1 < len(body) && isNameChar(body[i+1]) &&
				!strings.HasSuffix(name, "(") && name != "FN" && name != "PROC" {
				sb.WriteByte(' ')
			}

		case b < 0x20:
			return "", newError(EBADPROG)

		default:
			sb.WriteByte(b)
		}
	}

	return sb.String(), nil
}

//
// Load a program into the workspace, replacing nothing: the caller
// clears the program first and clears it again if this fails
//

func (in *interp) loadProgram(r io.Reader) (int, loadInfo, error) {

	var info loadInfo

	data, err := io.ReadAll(io.LimitReader(r, maxLoadSize))
	if err != nil {
		return 0, info, newError(EREADFAIL)
	}

	lines, err := decodeProgram(data, &info)
	if err != nil {
		return 0, info, err
	}

	written := 0

	for _, l := range lines {
		rec, err := encodeLine(l.number, l.text)
		if err != nil {
			return written, info, err
		}

		if err := in.insertLine(rec); err != nil {
			return written, info, err
		}

		written += len(rec)
		info.lines++
	}

	if info.unnumbered {
		if err := in.renumber(1, 1); err != nil {
			return written, info, err
		}
	}

	loaderLog.Debugf("loaded %d lines (%d bytes) from %s file", info.lines,
		written, formatNames[info.format])

	return written, info, nil
}

//
// Build a standalone block of records for a library.  Lines are put in
// number order and a repeated number keeps the last copy
//

func buildLibrary(r io.Reader) ([]byte, error) {

	var info loadInfo

	data, err := io.ReadAll(io.LimitReader(r, maxLoadSize))
	if err != nil {
		return nil, newError(EREADFAIL)
	}

	lines, err := decodeProgram(data, &info)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].number < lines[j].number
	})

	var block []byte

	for i, l := range lines {
		if i+1 < len(lines) && lines[i+1].number == l.number {
			continue
		}

		rec, err := encodeLine(l.number, l.text)
		if err != nil {
			return nil, err
		}

		block = append(block, rec...)
	}

	sentinel := make([]byte, sentinelLen)
	writeSentinel(sentinel, 0)

	return append(block, sentinel...), nil
}

//
// Write the program as text, one numbered line per record
//

func (in *interp) saveText(w io.Writer) error {

	mem := in.ws.mem
	bw := bufio.NewWriter(w)

	for p := in.ws.page; !atProgramEnd(mem, p); p = nextLine(mem, p) {
		if _, err := bw.WriteString(listLine(mem, p, false) + "\n"); err != nil {
			return newError(EWRITEFAIL)
		}
	}

	if err := bw.Flush(); err != nil {
		return newError(EWRITEFAIL)
	}

	return nil
}
