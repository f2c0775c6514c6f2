package main

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/danswartzendruber/liner"
	"github.com/tklauser/go-sysconf"
	"golang.org/x/term"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

//
// We are interactive only if standard input is a terminal.  Otherwise
// commands are read from standard input as a stream, so the
// interpreter can be driven by a script or a pipe
//

func checkTerminal() bool {

	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

//
// One Liner instance, for the command prompt.  Close restores the
// terminal to the state it was in when the instance was created
//

func setupLiner(allowCtrlC bool) *liner.State {

	l := liner.NewLiner()

	l.SetMultiLineMode(allowCtrlC)

	return l
}

//
// Restore terminal state.  NB: we cannot call (or cause to be called)
// crash(), as that would recurse
//

func cleanupLiner(linerState **liner.State) {

	if *linerState != nil {
		(*linerState).Close()
		*linerState = nil
	}
}

//
// Routines to interface with OS filesystem code
//

func openFileFull(filename string, iomode int) (*file, error) {

	var mode int

	switch iomode {
	case IOREAD:
		mode = os.O_RDONLY

	case IOWRITE:
		mode = (os.O_CREATE | os.O_WRONLY | os.O_TRUNC)

	default:
		mode = (os.O_CREATE | os.O_RDWR)
	}

	//
	// Reading needs an existing, regular file
	//

	if (iomode & IOWRITE) == 0 {
		finfo, err := os.Stat(filename)
		if err != nil {
			return nil, mapOSError(err)
		}
		if !finfo.Mode().IsRegular() {
			return nil, newError(EFILEIO, filename+" is not a regular file")
		}
	}

	osFile, err := os.OpenFile(filename, mode, 0644)
	if err != nil {
		if (iomode & IOWRITE) != 0 {
			return nil, newError(EOPENOUT, filename)
		}
		return nil, mapOSError(err)
	}

	of := &file{filename: filename, osFile: osFile, iomode: iomode}

	if (iomode & IOREAD) != 0 {
		of.reader = bufio.NewReader(osFile)
	}

	if (iomode & IOWRITE) != 0 {
		of.writer = bufio.NewWriter(osFile)
	}

	return of, nil
}

func closeFile(file **file) error {

	var err error

	if (*file).writer != nil {
		err = (*file).writer.Flush()
	}

	if cerr := (*file).osFile.Close(); err == nil {
		err = cerr
	}

	*file = nil

	if err != nil {
		return newError(EWRITEFAIL)
	}

	return nil
}

func fileExists(filename string) bool {

	//
	// Return true if the file exists and can be seen.
	// We don't care if it can't be opened by the caller,
	// as they will handle any permissions issues
	//

	if _, err := os.Stat(filename); err == nil {
		return true
	} else {
		return false
	}
}

//
// Map OS errors to our BASIC errors
//

func mapOSError(err error) error {

	var name string

	if pErr, ok := err.(*os.PathError); ok {
		name = pErr.Path
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newError(EFILENOTFOUND, name)

	case errors.Is(err, fs.ErrPermission):
		return newError(EFILEIO, name+" (permission denied)")
	}

	return newError(EFILEIO, err.Error())
}

func pluralize(str string, num int) string {

	//
	// Oddity: 0 is considered plural
	//

	if num != 1 {
		str += "s"
	}

	return strconv.Itoa(num) + " " + str
}

func switchSetting(b bool) string {

	if b {
		return "on"
	} else {
		return "off"
	}
}

func convertToKB(num int) int {

	const KB = 1024

	return (num + KB - 1) / KB
}

//
// Run statistics, printed after each command when TRACE STATS or the
// stats configuration flag is on
//

func resetStatistics() {

	s.elapsed = time.Now()
	s.utime, s.stime = getCPUInfo(1)
	s.numStatements = 0
}

func printStatistics(in *interp) {

	in.printf("%s executed, %dKB free\n", pluralize("statement", int(s.numStatements)),
		convertToKB(in.ws.free()))

	printCpuUsage(in)
}

func printCpuUsage(in *interp) {

	elapsed := time.Since(s.elapsed)
	utime, stime := getCPUInfo(1)

	in.printf("CPU Usage: elapsed = %s / user = %s / system = %s\n",
		formatCPUTime(int64(elapsed.Seconds())),
		formatCPUTime(utime-s.utime), formatCPUTime(stime-s.stime))
}

func formatCPUTime(t int64) string {

	var h, m int64

	if t >= 3600 {
		h = t / 3600
		t = t % 3600
	}

	if t >= 60 {
		m = t / 60
		t = t % 60
	}

	return fmt.Sprintf("%02d:%02d:%02d", h, m, t)
}

//
// User and system time in seconds, from /proc.  Zero where there is
// no /proc
//

func getCPUInfo(divisor int64) (int64, int64) {

	clktck, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || clktck <= 0 {
		return 0, 0
	} else {
		clktck /= divisor
	}

	contents, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, 0
	}

	//
	// The command name can contain spaces, so count fields from the
	// closing bracket after it
	//

	stat := string(contents)
	if i := strings.LastIndexByte(stat, ')'); i >= 0 {
		stat = stat[i+1:]
	}

	fields := strings.Fields(stat)
	if len(fields) < 13 {
		return 0, 0
	}

	utime, err := strconv.ParseInt(fields[11], 10, 64)
	if err != nil {
		return 0, 0
	}

	stime, err := strconv.ParseInt(fields[12], 10, 64)
	if err != nil {
		return 0, 0
	}

	return utime / clktck, stime / clktck
}

//
// Centisecond clock behind TIME
//

func clock() {

	start := time.Now()

	ticker := time.NewTicker(centiTick)
	defer ticker.Stop()

	for range ticker.C {
		g.centiTime.Store(int64(time.Since(start) / (10 * time.Millisecond)))
	}
}

//
// Print a fatal message and abort the process.  We write to standard
// error, since the user may have redirected standard output, and we
// would not see it then.  Also, dup os.Stdout, then close os.Stdout
// and os.Stderr in case another goroutine is writing to the terminal.
// Make sure to call cleanupLiner, so the terminal state is sane
//

func crash(msg string) {

	var w *os.File

	cleanupLiner(&g.parserLiner)

	if msg != "" {
		fd, err := syscall.Dup(int(os.Stderr.Fd()))
		if err == nil {
			os.Stdout.Close()
			os.Stderr.Close()
			w = os.NewFile(uintptr(fd), "stdout on new fd")
		} else {
			w = os.Stderr
		}

		fmt.Fprintln(w, msg)
	}

	os.Exit(1)
}
