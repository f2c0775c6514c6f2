package main

import (
	"bufio"
	"bytes"
	"fmt"
	"github.com/danswartzendruber/liner"
	"golang.org/x/term"
	"io"
	"os"
	"strings"
)

//
// The interpreter talks to the outside world through a console: a
// character sink for output, a line source for the prompt, and a
// query for the screen width
//

type readOutcome int

const (
	readOK readOutcome = iota
	readEscape
	readEOF
)

type console interface {
	emit(c byte)
	flush()
	readLine(prompt string) (string, readOutcome)
	width() int
}

//
// Interactive console: liner for input with history, buffered stdout
// for output
//

type linerConsole struct {
	state *liner.State
	out   *bufio.Writer
}

func newLinerConsole(state *liner.State) *linerConsole {

	return &linerConsole{state: state, out: bufio.NewWriter(os.Stdout)}
}

func (c *linerConsole) emit(b byte) {

	c.out.WriteByte(b)
}

func (c *linerConsole) flush() {

	c.out.Flush()
}

func (c *linerConsole) readLine(prompt string) (string, readOutcome) {

	c.flush()

	line, err := c.state.Prompt(prompt)

	switch {
	case err == nil:

	case err == liner.ErrPromptAborted:
		return "", readEscape

	case err == io.EOF:
		return "", readEOF

	default:
		crash(fmt.Sprintf("readLine error: %q", err))
	}

	if strings.TrimSpace(line) != "" {
		c.state.AppendHistory(line)
	}

	return line, readOK
}

func (c *linerConsole) width() int {

	return g.window.cols
}

//
// Console on plain streams, used when stdin is not a terminal
//

type streamConsole struct {
	in  *bufio.Reader
	out *bufio.Writer
}

func newStreamConsole(r io.Reader, w io.Writer) *streamConsole {

	return &streamConsole{in: bufio.NewReader(r), out: bufio.NewWriter(w)}
}

func (c *streamConsole) emit(b byte) {

	c.out.WriteByte(b)
}

func (c *streamConsole) flush() {

	c.out.Flush()
}

func (c *streamConsole) readLine(prompt string) (string, readOutcome) {

	c.flush()

	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", readEOF
	}

	return strings.TrimRight(line, "\r\n"), readOK
}

func (c *streamConsole) width() int {

	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return w
	}

	return 0
}

//
// Console that records output and replays scripted input
//

type bufferConsole struct {
	out   bytes.Buffer
	input []string
	cols  int
}

func (c *bufferConsole) emit(b byte) {

	c.out.WriteByte(b)
}

func (c *bufferConsole) flush() {
}

func (c *bufferConsole) readLine(prompt string) (string, readOutcome) {

	if len(c.input) == 0 {
		return "", readEOF
	}

	line := c.input[0]
	c.input = c.input[1:]

	return line, readOK
}

func (c *bufferConsole) width() int {

	return c.cols
}

//
// All interpreter output goes through here, so the column PRINT needs
// for its zones is always known
//

func (in *interp) printf(f string, args ...any) {

	str := fmt.Sprintf(f, args...)

	for i := 0; i < len(str); i++ {
		c := str[i]

		in.con.emit(c)

		if c == '\n' || c == '\r' {
			in.column = 0
		} else {
			in.column++
		}
	}
}
