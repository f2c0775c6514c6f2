package main

import (
	"fmt"
	"golang.org/x/term"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const imageDumpFile = "brandy-image.cbor"

const usage = "Usage: brandy [-config file] [-size kb] [-quit] [-lib file]... [-image file] [program]"

//
// Tricky: init is called under the hood by the GO runtime when
// we fire up, so there are no visible calls to it!
//

func init() {

	initErrors()

	initTokens()

	initScramble()

	initImage()
}

type options struct {
	configFile string
	sizeKB     int
	quit       bool
	libs       []string
	image      string
	program    string
}

func main() {

	//
	// We need to close the Liner instance on the way out, to make
	// sure we end up back in normal (cooked) terminal mode
	//

	defer func() {
		cleanupLiner(&g.parserLiner)
	}()

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		crash(err.Error() + "\n" + usage)
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	if opts.sizeKB != 0 {
		cfg.Workspace.SizeKB = opts.sizeKB
	}

	cfg.configureLogging()

	g.interactive = checkTerminal()

	var con console

	if g.interactive {
		setupWindow()
		g.parserLiner = setupLiner(true)
		con = newLinerConsole(g.parserLiner)
	} else {
		con = newStreamConsole(os.Stdin, os.Stdout)
	}

	in, err := newInterp(cfg, con)
	if err != nil {
		crash(fmt.Sprintf("Unable to create the workspace: %v", err))
	}

	g.session = in
	g.loginTime = time.Now()

	//
	// Run the signal handling code and the clock in goroutines
	//

	go sigHdlr()

	go clock()

	for _, lib := range opts.libs {
		if err := in.loadLibrary(lib, true); err != nil {
			in.report(err)
		}
	}

	if opts.image != "" {
		if err := in.loadImage(opts.image); err != nil {
			in.report(err)
		}
	}

	if opts.program != "" {
		in.quitAtEnd = opts.quit

		status, quit := in.report(in.loadFile(opts.program))

		if !quit && status == 0 {
			status, quit = in.runCommand("RUN")
		}

		if in.quitAtEnd || quit {
			in.con.flush()
			exit(status)
		}
	}

	if g.interactive {
		printVersionInfo(in)
	}

	exit(in.commandLoop())
}

func exit(status int) {

	cleanupLiner(&g.parserLiner)

	os.Exit(status)
}

//
// The command line is parsed by hand, BASIC-PLUS style
//

func parseArgs(args []string) (options, error) {

	opts := options{configFile: defaultConfigFile}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s needs a value", arg)
			}
			i++
			return args[i], nil
		}

		var err error

		switch arg {
		case "-config":
			opts.configFile, err = value()

		case "-size":
			var v string
			if v, err = value(); err == nil {
				if opts.sizeKB, err = strconv.Atoi(v); err != nil {
					err = fmt.Errorf("bad workspace size %q", v)
				}
			}

		case "-quit":
			opts.quit = true

		case "-lib":
			var v string
			if v, err = value(); err == nil {
				opts.libs = append(opts.libs, v)
			}

		case "-image":
			opts.image, err = value()

		default:
			switch {
			case strings.HasPrefix(arg, "-"):
				err = fmt.Errorf("unknown option %s", arg)
			case opts.program != "":
				err = fmt.Errorf("only one program may be given")
			default:
				opts.program = arg
			}
		}

		if err != nil {
			return opts, err
		}
	}

	if opts.quit && opts.program == "" {
		return opts, fmt.Errorf("-quit needs a program")
	}

	return opts, nil
}

func newInterp(cfg *config, con console) (*interp, error) {

	ws, err := newWorkspace(cfg.Workspace.SizeKB)
	if err != nil {
		return nil, err
	}

	in := &interp{ws: ws, con: con, cfg: cfg, rndSeed: uint32(time.Now().UnixNano())}

	in.initSymbolTable()

	cfg.applyTrace(in)

	return in, nil
}

//
// Read terminal geometry
//

func setupWindow() {

	var err error

	g.window.cols, g.window.rows, err = term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		g.window.cols, g.window.rows = 0, 0
	}
}

func printVersionInfo(in *interp) {

	in.printf("Brandy BASIC version %s - %dKB workspace, %dKB free\n\n",
		VERSION, convertToKB(int(in.ws.himem)), convertToKB(in.ws.free()))
}

//
// Loop forever, or until we quit.  Returns the exit status
//

func (in *interp) commandLoop() int {

	for !g.exiting {
		line, outcome := in.con.readLine(myPrompt)

		switch outcome {
		case readEOF:
			in.con.flush()
			return 0

		case readEscape:
			in.printf("\nEscape\n")
			continue
		}

		if status, quit := in.runCommand(line); quit {
			in.con.flush()
			return status
		}
	}

	return 0
}

func (in *interp) runCommand(line string) (int, bool) {

	var err error

	in.column = 0
	g.interrupted.Store(false)

	if in.printStats {
		resetStatistics()
	}

	call(func() {
		err = in.executeLine(line)
	})

	status, quit := in.report(err)

	if in.printStats && !quit {
		printStatistics(in)
	}

	in.con.flush()

	return status, quit
}

//
// Tell the user how a command ended.  Returns the exit status the
// process would have if it stopped now, and whether QUIT asked it to
//

func (in *interp) report(err error) (int, bool) {

	if err == nil {
		return 0, false
	}

	if in.column != 0 {
		in.printf("\n")
	}

	switch e := err.(type) {
	case *crawlout:
		switch {
		case e.quit:
			return e.code, true
		case e.stop:
			in.printf("\n%s\n", errorReport(e))
		}
		return 0, false

	case *basicError:
		in.printf("%s\n", errorReport(e))
		if e.number != 0 {
			return e.number, false
		}
		return 1, false
	}

	in.printf("%s\n", err)

	return 1, false
}

func writeGoroutineStacks() {

	name := "goroutines-stacks"
	mode := (os.O_CREATE | os.O_WRONLY)

	dumpFile, err := os.OpenFile(name, mode, 0644)
	if err != nil {
		iErr := err.(*os.PathError)
		fmt.Fprintf(os.Stderr, "Unable to open %s (%s)\n",
			name, iErr.Err.Error())
		return
	}

	_ = pprof.Lookup("goroutine").WriteTo(dumpFile, 2)

	m := fmt.Sprintf("Dumping goroutine stacks to %v and exiting", name)

	crash(m)
}

func sigHdlr() {

	ch := make(chan os.Signal, 1)

	signal.Ignore(syscall.SIGTSTP)

	signal.Notify(ch, syscall.SIGQUIT)
	signal.Notify(ch, syscall.SIGINT)
	signal.Notify(ch, syscall.SIGWINCH)

	for {
		sig := <-ch

		switch sig {

		default:
			crash(fmt.Sprintf("Unexpected signal %d", sig))

		case syscall.SIGWINCH:
			if g.interactive {
				setupWindow()
			}

		case syscall.SIGQUIT:
			if g.session != nil {
				if err := g.session.writeImage(imageDumpFile); err != nil {
					fmt.Fprintf(os.Stderr, "Unable to write %s (%v)\n", imageDumpFile, err)
				}
			}
			writeGoroutineStacks() // does not return

		case syscall.SIGINT:
			g.interrupted.Store(true)
		}
	}
}

//
// This procedure is called by the panic deferred recovery function.
// BASIC errors and crawlouts are normally caught by the statement
// loop, so anything arriving here is a Go runtime panic inside the
// kernel.  We have to grovel for the code that panicked, not the
// caller of panic, since that is somewhere inside GO.  Scan the call
// stack, looking for a function named 'runtime.gopanic', and pick the
// next non-runtime frame.  The session's stack can't be trusted after
// that, so it is reset
//

func decodePanic(e any) {

	var frame runtime.Frame
	var more bool
	var panicSeen bool
	var panicFrame runtime.Frame
	var panicCount int

	in := g.session

	switch e := e.(type) {
	default:
		pcs := make([]uintptr, 99)

		_ = pcs[:runtime.Callers(1, pcs)]

		frames := runtime.CallersFrames(pcs)

		for {
			frame, more = frames.Next()
			if !more {
				break
			}

			if frame.Function == "runtime.gopanic" {
				panicSeen = true
				panicCount++
			} else if panicSeen {
				if !strings.HasPrefix(frame.Function, "runtime.") {
					panicFrame = frame
					panicSeen = false
				}
			}
		}

		if panicCount == 0 { // impossible?
			crash("Unable to locate panic caller")
		}

		msg := fmt.Sprintf("%s (%v at %s line %d)", EBROKEN, e,
			filepath.Base(panicFrame.File), panicFrame.Line)

		execLog.Errorf("%s", msg)

		if in != nil {
			in.printf("%s\n", msg)
			if in.traceDump {
				in.con.flush()
				debug.PrintStack()
			}
			in.recoverState()
		} else {
			fmt.Println(msg)
			debug.PrintStack()
		}

	case *basicError:
		if in != nil {
			in.printf("%s\n", errorReport(e))
			in.recoverState()
		}

	case *crawlout:
		if in != nil {
			in.recoverState()
		}
	}
}

//
// Wrapper routine for a function.  We need this so that panic calls
// can be caught and decoded before returning to our caller
//

func call(f func()) {

	defer func() {
		err := recover()
		if err != nil {
			decodePanic(err)
		}
	}()

	f()
}

//
// Back to a clean command prompt after something went badly wrong.
// The program and variables are kept; the stack is not
//

func (in *interp) recoverState() {

	in.ws.resetStack()

	in.base = in.ws.sp
	in.exprDepth = 0
	in.procDepth = 0
	in.fnReturn = false
	in.running = false
	in.errh = errorHandler{}
}

//
// A couple of handy 'assert' functions
//

func basicAssert(chk bool, subsystem, msg string) {

	if !chk {
		e := brokenError(subsystem, msg)
		if _, file, line, ok := runtime.Caller(1); ok {
			e.file = file
			e.srcLine = line
		}
		panic(e)
	}
}

func runtimeCheck(chk bool, msg string) {

	if !chk {
		runtimeError(msg)
	}
}

//
// Raise a BASIC error from inside statement execution.  The statement
// loop recovers it, unwinds the stack and hands control to an ON ERROR
// handler or back to the prompt
//

func runtimeError(msg string, args ...any) {

	panic(newError(msg, args...))
}
