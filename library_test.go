package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLibrary(t *testing.T, dir, name string, lines ...string) string {

	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLibraryInHeap(t *testing.T) {

	lib := writeLibrary(t, t.TempDir(), "greet.bas",
		"10 DEF PROChello(N$)",
		"20 PRINT \"hello \";N$",
		"30 ENDPROC",
		"40 DEF FNdouble(X%)=X%*2",
	)

	_, out, err := runProgram(t,
		`10 LIBRARY "`+lib+`"`,
		`20 PROChello("lib"): PRINT FNdouble(21)`,
	)
	if err != nil {
		t.Fatalf("RUN: %v", err)
	}

	if out != "hello lib\n42\n" {
		t.Errorf("output = %q", out)
	}
}

func TestLibraryGoneAfterEdit(t *testing.T) {

	lib := writeLibrary(t, t.TempDir(), "one.bas", "10 DEF PROCone", "20 ENDPROC")

	in, _ := newTestInterp(t)

	enter(t, in, `LIBRARY "`+lib+`"`)
	if len(in.libs.heap) != 1 {
		t.Fatalf("%d heap libraries", len(in.libs.heap))
	}

	enter(t, in, "10 REM edit")
	if len(in.libs.heap) != 0 {
		t.Errorf("heap library survived a program edit")
	}
}

func TestInstall(t *testing.T) {

	dir := t.TempDir()
	writeLibrary(t, dir, "util.bas",
		"10 DEF FNsquare(X)",
		"20 =X*X",
	)

	cfg := defaultConfig()
	cfg.Library.Path = []string{dir}

	con := &bufferConsole{cols: 80}
	in, err := newInterp(cfg, con)
	if err != nil {
		t.Fatal(err)
	}

	// Found along the search path, with .bas added
	enter(t, in, `INSTALL "util"`)

	enter(t, in, "10 PRINT FNsquare(7)", "NEW", "10 PRINT FNsquare(3)")

	con.out.Reset()
	if err := in.executeLine("RUN"); err != nil {
		if _, ok := err.(*crawlout); !ok {
			t.Fatalf("RUN: %v", err)
		}
	}

	if got := con.out.String(); got != "9\n" {
		t.Errorf("output = %q", got)
	}

	if err := in.executeLine(`INSTALL "util"`); !isError(err, ENOTINSTALLED) {
		t.Errorf("second INSTALL = %v", err)
	}
}

func TestBadLibrary(t *testing.T) {

	in, _ := newTestInterp(t)

	if err := in.executeLine(`LIBRARY "` + filepath.Join(t.TempDir(), "none") + `"`); !isError(err, EFILENOTFOUND) {
		t.Errorf("missing library = %v", err)
	}
}
