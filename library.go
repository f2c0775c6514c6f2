package main

import (
	"github.com/danswartzendruber/avl"
	"github.com/tliron/commonlog"
	"path/filepath"
)

var libraryLog = commonlog.GetLogger("brandy.library")

//
// A library is a block of line records ending in a sentinel, like the
// program.  LIBRARY puts the block in the heap, so it goes whenever the
// heap is cleared; INSTALL appends it above the command buffer for the
// rest of the session.  Each library indexes its DEF PROC/FN lines by
// name when it is loaded
//

type library struct {
	name      string
	base      offset
	size      int
	installed bool
	defs      *avl.AvlNode
}

type libraryList struct {
	heap      []*library
	installed []*library
}

func newLibrary(mem []byte, name string, base offset, size int, installed bool) *library {

	lib := &library{name: name, base: base, size: size, installed: installed,
		defs: nil}

	scanDefinitions(mem, base, func(n string, rec, pc offset) {
		if !defAvlTreeInsert(&lib.defs, &defNode{name: n, record: rec, pc: pc}) {
			libraryLog.Debugf("%s: later definition of %s ignored", name, n)
		}
	})

	return lib
}

//
// Heap libraries are searched before installed ones, most recently
// loaded first
//

func (l *libraryList) lookup(name string) *defNode {

	for i := len(l.heap) - 1; i >= 0; i-- {
		if def := defAvlTreeLookup(l.heap[i].defs, name); def != nil {
			return def
		}
	}

	for i := len(l.installed) - 1; i >= 0; i-- {
		if def := defAvlTreeLookup(l.installed[i].defs, name); def != nil {
			return def
		}
	}

	return nil
}

func (l *libraryList) dropHeap() {

	if len(l.heap) > 0 {
		libraryLog.Debugf("dropping %s", pluralize("heap library block", len(l.heap)))
	}

	l.heap = nil
}

func (l *libraryList) find(name string) *library {

	for _, lib := range append(l.heap, l.installed...) {
		if lib.name == name {
			return lib
		}
	}

	return nil
}

//
// The starts of every block of records: the program first, then the
// libraries
//

func (in *interp) segments() []offset {

	segs := []offset{in.ws.page}

	for _, lib := range in.libs.heap {
		segs = append(segs, lib.base)
	}

	for _, lib := range in.libs.installed {
		segs = append(segs, lib.base)
	}

	return segs
}

//
// The block a record belongs to.  The command line counts as part of
// the program
//

func (in *interp) segmentOf(p offset) offset {

	for _, lib := range append(in.libs.heap, in.libs.installed...) {
		if p >= lib.base && p < lib.base+offset(lib.size) {
			return lib.base
		}
	}

	return in.ws.page
}

//
// Find a library file: as given, with .bas added, then along the
// configured search path
//

func (in *interp) findLibraryFile(name string) (string, error) {

	candidates := []string{name, name + basFileSuffix}

	if !filepath.IsAbs(name) && in.cfg != nil {
		for _, dir := range in.cfg.Library.Path {
			candidates = append(candidates, filepath.Join(dir, name),
				filepath.Join(dir, name+basFileSuffix))
		}
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}

	return "", newError(EFILENOTFOUND, name)
}

func (in *interp) loadLibrary(name string, install bool) error {

	path, err := in.findLibraryFile(name)
	if err != nil {
		return err
	}

	if lib := in.libs.find(path); lib != nil {
		if install || lib.installed {
			return newError(ENOTINSTALLED, name)
		}
	}

	f, err := openFileFull(path, IOREAD)
	if err != nil {
		return err
	}

	block, err := buildLibrary(f.reader)
	closeFile(&f)
	if err != nil {
		return err
	}

	ws := in.ws

	if _, ok := validateProgram(block, 0, offset(len(block))); !ok {
		return newError(EBADLIB, name)
	}

	var base offset

	if install {
		base = ws.installBlock(block)
	} else {
		if base, err = ws.allocate(len(block)); err != nil {
			return err
		}
		copy(ws.mem[base:], block)
	}

	lib := newLibrary(ws.mem, path, base, len(block), install)

	if install {
		in.libs.installed = append(in.libs.installed, lib)
	} else {
		in.libs.heap = append(in.libs.heap, lib)
	}

	libraryLog.Infof("%s %s at %d (%d bytes)", map[bool]string{false: "loaded",
		true: "installed"}[install], path, base, len(block))

	return nil
}
