package main

import (
	"bytes"
	"github.com/klauspost/compress/gzip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var acornProgram = []byte{
	0x0D, 0x00, 0x0A, 0x0A, 0xF1, ' ', '"', 'H', 'I', '"',
	0x0D, 0x00, 0x14, 0x0A, 0xE5, ' ', 0x8D, 0x54, 0x4A, 0x40,
	0x0D, 0xFF,
}

var russellProgram = []byte{
	0x0A, 0x0A, 0x00, 0xF1, ' ', '"', 'H', 'I', '"', 0x0D,
	0x0A, 0x14, 0x00, 0xE5, ' ', 0x8D, 0x54, 0x4A, 0x40, 0x0D,
	0x00,
}

func gzipped(t *testing.T, data []byte) []byte {

	t.Helper()

	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func TestLoadFormats(t *testing.T) {

	text := []byte("10 PRINT \"HI\"\n20 GOTO 10\n")
	want := []string{"10 PRINT \"HI\"", "20 GOTO 10"}

	tests := []struct {
		name   string
		data   []byte
		format int
	}{
		{"text", text, formatText},
		{"crlf text", []byte("10 PRINT \"HI\"\r\n20 GOTO 10\r\n"), formatText},
		{"gzip", gzipped(t, text), formatText},
		{"scrambled", scramble(text), formatScramble},
		{"acorn", acornProgram, formatAcorn},
		{"russell", russellProgram, formatRussell},
		{"gzipped acorn", gzipped(t, acornProgram), formatAcorn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newTestInterp(t)

			_, info, err := in.loadProgram(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("loadProgram: %v", err)
			}

			if info.format != tt.format {
				t.Errorf("format = %s, want %s", formatNames[info.format], formatNames[tt.format])
			}

			if got := listing(in); !reflect.DeepEqual(got, want) {
				t.Errorf("listing = %q, want %q", got, want)
			}
		})
	}
}

func TestLoadTextNumbering(t *testing.T) {

	tests := []struct {
		name       string
		text       string
		want       []string
		unnumbered bool
		quit       bool
	}{
		{
			name:       "unnumbered",
			text:       "PRINT 1\n\nPRINT 2\n",
			want:       []string{"1 PRINT 1", "2 PRINT 2"},
			unnumbered: true,
		},
		{
			name: "gaps filled from the previous number",
			text: "10 A=1\nB=2\n30 C=3\n",
			want: []string{"10 A=1", "11 B=2", "30 C=3"},
		},
		{
			name: "out of order",
			text: "20 B=2\n10 A=1\n",
			want: []string{"10 A=1", "20 B=2"},
		},
		{
			name: "script",
			text: "#!/usr/local/bin/brandy\n10 PRINT 1\n",
			want: []string{"10 PRINT 1"},
			quit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newTestInterp(t)

			_, info, err := in.loadProgram(strings.NewReader(tt.text))
			if err != nil {
				t.Fatalf("loadProgram: %v", err)
			}

			if info.unnumbered != tt.unnumbered || info.quitAtEnd != tt.quit {
				t.Errorf("info = %+v", info)
			}

			if got := listing(in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("listing = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeBBCLineNumber(t *testing.T) {

	tests := []struct {
		b    [3]byte
		want int
	}{
		{[3]byte{0x54, 0x4A, 0x40}, 10},
		{[3]byte{0x44, 0x64, 0x40}, 100},
	}

	for _, tt := range tests {
		if got := decodeBBCLineNumber(tt.b[0], tt.b[1], tt.b[2]); got != tt.want {
			t.Errorf("decodeBBCLineNumber(% x) = %d, want %d", tt.b, got, tt.want)
		}
	}
}

func TestDamagedBinary(t *testing.T) {

	if _, err := decodeAcorn([]byte{0x0D, 0x00, 0x0A, 0x20, 0xF1}); !isError(err, EBADPROG) {
		t.Errorf("truncated Acorn record = %v", err)
	}

	if _, err := decodeRussell([]byte{0x05, 0x0A, 0x00, 0xF1, 0x20}); !isError(err, EBADPROG) {
		t.Errorf("Russell record without CR = %v", err)
	}

	if _, err := reformat([]byte{0xC7, 0x01}); !isError(err, EBADPROG) {
		t.Errorf("unknown extended token = %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {

	src, _ := newTestInterp(t)

	enter(t, src,
		"10 REM round trip",
		"20 FOR I%=1 TO 10: PRINT \"x\";: NEXT",
		"30 IF A%<>B% THEN 10 ELSE 20",
		"40 DATA 1,\"a,b\"",
	)

	var buf bytes.Buffer
	if err := src.saveText(&buf); err != nil {
		t.Fatalf("saveText: %v", err)
	}

	dst, _ := newTestInterp(t)
	if _, _, err := dst.loadProgram(&buf); err != nil {
		t.Fatalf("loadProgram: %v", err)
	}

	if got, want := listing(dst), listing(src); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded listing = %q, want %q", got, want)
	}
}

func TestLoadSaveFiles(t *testing.T) {

	path := filepath.Join(t.TempDir(), "prog.bas")

	in, _ := newTestInterp(t)

	enter(t, in, "10 PRINT 1", "20 PRINT 2", `SAVE "`+path+`"`, "NEW")

	if in.programLines() != 0 {
		t.Fatalf("NEW left the program")
	}

	enter(t, in, `LOAD "`+strings.TrimSuffix(path, ".bas")+`"`)

	if want := []string{"10 PRINT 1", "20 PRINT 2"}; !reflect.DeepEqual(listing(in), want) {
		t.Errorf("listing = %q, want %q", listing(in), want)
	}

	if in.programName != path {
		t.Errorf("program name = %q, want %q", in.programName, path)
	}

	err := in.executeLine(`LOAD "` + filepath.Join(t.TempDir(), "missing") + `"`)
	if !isError(err, EFILENOTFOUND) {
		t.Errorf("LOAD of a missing file = %v", err)
	}

	if in.programLines() != 2 {
		t.Errorf("failed LOAD replaced the program")
	}
}

func TestFailedLoadLeavesNothingForOld(t *testing.T) {

	path := filepath.Join(t.TempDir(), "long.bas")
	text := "10 PRINT 1\n20 PRINT \"" + strings.Repeat("x", maxLineLen) + "\"\n"
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	in, _ := newTestInterp(t)

	if err := in.executeLine(`LOAD "` + path + `"`); err == nil {
		t.Fatalf("LOAD of an over-long line succeeded")
	}

	if in.programLines() != 0 {
		t.Errorf("failed LOAD left %d lines", in.programLines())
	}

	if err := in.oldProgram(); !isError(err, EBADPROG) {
		t.Errorf("OLD after a failed LOAD = %v", err)
	}

	if in.programLines() != 0 {
		t.Errorf("OLD brought back a half-loaded program: %q", listing(in))
	}
}

func TestScrambleTableIsPermutation(t *testing.T) {

	var seen [256]bool

	for i := 0; i < 256; i++ {
		b := scrambleTable[i]
		if seen[b] {
			t.Fatalf("scrambled byte %#x used twice", b)
		}
		seen[b] = true

		if unscrambleTable[b] != byte(i) {
			t.Errorf("unscramble(%#x) = %#x, want %#x", b, unscrambleTable[b], i)
		}
	}
}
