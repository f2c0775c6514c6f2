package main

import (
	"encoding/binary"
	"fmt"
	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
	"os"
)

var imageLog = commonlog.GetLogger("brandy.image")

//
// A workspace image is the program area, CBOR encoded with enough of
// the layout to check it against the workspace it is loaded into.
// One is written next to the goroutine stacks on SIGQUIT, and -image
// loads one at startup
//

const imageMagic = "BRANDY-IMAGE"
const imageVersion = 1

type workspaceImage struct {
	Magic   string `cbor:"magic"`
	Version int    `cbor:"version"`
	Page    int    `cbor:"page"`
	Top     int    `cbor:"top"`
	Himem   int    `cbor:"himem"`
	Name    string `cbor:"name"`
	Program []byte `cbor:"program"`
}

var imageEncMode cbor.EncMode

func initImage() {

	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}

	imageEncMode = em
}

func (in *interp) marshalImage() ([]byte, error) {

	ws := in.ws

	img := workspaceImage{
		Magic:   imageMagic,
		Version: imageVersion,
		Page:    int(ws.page),
		Top:     int(ws.top),
		Himem:   int(ws.himem),
		Name:    in.programName,
		Program: append([]byte{}, ws.mem[ws.page:ws.top]...),
	}

	demoteReferences(ws.mem, img.Program)

	return imageEncMode.Marshal(&img)
}

//
// Resolved references hold workspace offsets, which mean nothing once
// the program is loaded somewhere else.  Turn the copy's references
// back into line numbers and names; line references are looked up in
// mem, the workspace the copy was taken from
//

func demoteReferences(mem []byte, prog []byte) {

	end, _ := validateProgram(prog, 0, offset(len(prog)))

	for p := offset(0); p < end; p = nextLine(prog, p) {
		for q := execStart(prog, p); prog[q] != tokEnd; q += offset(tokenSize(prog, q)) {
			switch prog[q] {
			case tokLineRef:
				rec := offset(binary.LittleEndian.Uint32(prog[q+1:]))
				n := 0
				if int(rec)+lineHeaderSize <= len(mem) {
					n = lineNumber(mem, rec)
				}
				prog[q] = tokXLineNum
				binary.LittleEndian.PutUint32(prog[q+1:], uint32(n))

			case tokVar, tokProcRef, tokFnRef:
				invalidateName(prog, q)
			}
		}
	}
}

//
// The record holding the first resolved reference between p and end,
// or end if there is none
//

func firstResolvedRecord(mem []byte, p, end offset) offset {

	for ; p < end; p = nextLine(mem, p) {
		for q := execStart(mem, p); mem[q] != tokEnd; q += offset(tokenSize(mem, q)) {
			switch mem[q] {
			case tokLineRef, tokVar, tokProcRef, tokFnRef:
				return p
			}
		}
	}

	return end
}

func (in *interp) writeImage(name string) error {

	data, err := in.marshalImage()
	if err != nil {
		return fmt.Errorf("image: marshal: %w", err)
	}

	if err := os.WriteFile(name, data, 0644); err != nil {
		return mapOSError(err)
	}

	imageLog.Infof("wrote %s (%d bytes of program)", name, in.ws.top-in.ws.page)

	return nil
}

//
// Put an image's program into the workspace.  Every record is checked;
// if any is damaged the program is cut off before it and marked bad,
// so it can be listed but not run
//

func (in *interp) unmarshalImage(data []byte) error {

	var img workspaceImage

	if err := cbor.Unmarshal(data, &img); err != nil {
		return fmt.Errorf("image: unmarshal: %w", err)
	}

	if img.Magic != imageMagic || img.Version != imageVersion {
		return newError(EBADPROG, "(not a workspace image)")
	}

	ws := in.ws

	if int(ws.page)+len(img.Program)+stackBuffer > int(ws.himem) {
		return newError(ENOROOM)
	}

	in.newProgram()

	copy(ws.mem[ws.page:], img.Program)

	limit := ws.page + offset(len(img.Program))

	end, ok := validateProgram(ws.mem, ws.page, limit)
	if ok {
		if bad := firstResolvedRecord(ws.mem, ws.page, end); bad != end {
			end, ok = bad, false
		}
	}

	if !ok {
		writeSentinel(ws.mem, end)
		ws.top = end + sentinelLen
		in.programChanged()
		in.badProgram = true
		imageLog.Warningf("image program damaged at offset %d", end)
		return newError(EBADPROG)
	}

	ws.top = end + sentinelLen
	in.programChanged()
	in.programName = img.Name

	return nil
}

func (in *interp) loadImage(name string) error {

	data, err := os.ReadFile(name)
	if err != nil {
		return mapOSError(err)
	}

	return in.unmarshalImage(data)
}
