package main

import (
	"github.com/fxamacker/cbor/v2"
	"path/filepath"
	"reflect"
	"testing"
)

func TestImageRoundTrip(t *testing.T) {

	src, _ := newTestInterp(t)
	enter(t, src, "10 PRINT \"image\"", "20 GOTO 10")
	src.programName = "demo.bas"

	data, err := src.marshalImage()
	if err != nil {
		t.Fatalf("marshalImage: %v", err)
	}

	dst, con := newTestInterp(t)
	if err := dst.unmarshalImage(data); err != nil {
		t.Fatalf("unmarshalImage: %v", err)
	}

	if got, want := listing(dst), listing(src); !reflect.DeepEqual(got, want) {
		t.Errorf("listing = %q, want %q", got, want)
	}

	if dst.programName != "demo.bas" || dst.badProgram {
		t.Errorf("name %q, bad %t", dst.programName, dst.badProgram)
	}

	// The image must be runnable, not just listable
	enter(t, dst, "20 END")
	con.out.Reset()
	if err := dst.executeLine("RUN"); err != nil {
		if _, ok := err.(*crawlout); !ok {
			t.Fatalf("RUN: %v", err)
		}
	}

	if got := con.out.String(); got != "image\n" {
		t.Errorf("output = %q", got)
	}
}

func TestImageEncodingIsStable(t *testing.T) {

	in, _ := newTestInterp(t)
	enter(t, in, "10 A=1")

	a, err := in.marshalImage()
	if err != nil {
		t.Fatal(err)
	}

	b, err := in.marshalImage()
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("two encodings of the same workspace differ")
	}
}

func TestDamagedImage(t *testing.T) {

	src, _ := newTestInterp(t)
	enter(t, src, "10 PRINT 1", "20 PRINT 2", "30 PRINT 3")

	data, err := src.marshalImage()
	if err != nil {
		t.Fatal(err)
	}

	var img workspaceImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		t.Fatal(err)
	}

	// Break the length of the second record
	second := lineLength(img.Program, 0)
	img.Program[second+2] = 0xFF
	img.Program[second+3] = 0xFF

	if data, err = imageEncMode.Marshal(&img); err != nil {
		t.Fatal(err)
	}

	dst, _ := newTestInterp(t)

	if err := dst.unmarshalImage(data); !isError(err, EBADPROG) {
		t.Fatalf("unmarshalImage = %v, want %s", err, EBADPROG)
	}

	if !dst.badProgram {
		t.Errorf("damaged program not marked bad")
	}

	if want := []string{"10 PRINT 1"}; !reflect.DeepEqual(listing(dst), want) {
		t.Errorf("listing = %q, want %q", listing(dst), want)
	}

	if err := dst.executeLine("RUN"); !isError(err, EBADPROG) {
		t.Errorf("RUN of a bad program = %v", err)
	}

	// NEW clears the condition
	enter(t, dst, "NEW", "10 PRINT 1")
	if dst.badProgram {
		t.Errorf("NEW did not clear the bad program flag")
	}
}

func TestImageChecksHeader(t *testing.T) {

	data, err := imageEncMode.Marshal(&workspaceImage{Magic: "something else", Version: imageVersion})
	if err != nil {
		t.Fatal(err)
	}

	in, _ := newTestInterp(t)

	if err := in.unmarshalImage(data); !isError(err, EBADPROG) {
		t.Errorf("foreign image = %v", err)
	}

	if err := in.unmarshalImage([]byte{0xFF, 0x00}); err == nil {
		t.Errorf("garbage accepted as an image")
	}
}

func TestWriteAndLoadImage(t *testing.T) {

	path := filepath.Join(t.TempDir(), "ws.cbor")

	src, _ := newTestInterp(t)
	enter(t, src, "10 REM saved")

	if err := src.writeImage(path); err != nil {
		t.Fatalf("writeImage: %v", err)
	}

	dst, _ := newTestInterp(t)
	if err := dst.loadImage(path); err != nil {
		t.Fatalf("loadImage: %v", err)
	}

	if want := []string{"10 REM saved"}; !reflect.DeepEqual(listing(dst), want) {
		t.Errorf("listing = %q, want %q", listing(dst), want)
	}
}

func TestImageOfRunProgram(t *testing.T) {

	src, con := newTestInterp(t)
	enter(t, src, "10 GOTO 30", "20 PRINT \"wrong\"", "30 PRINT \"right\"")

	if got := rerun(t, src, con); got != "right\n" {
		t.Fatalf("first run = %q", got)
	}

	data, err := src.marshalImage()
	if err != nil {
		t.Fatal(err)
	}

	var img workspaceImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		t.Fatal(err)
	}

	end, ok := validateProgram(img.Program, 0, offset(len(img.Program)))
	if !ok {
		t.Fatalf("image program invalid at %d", end)
	}

	if bad := firstResolvedRecord(img.Program, 0, end); bad != end {
		t.Errorf("image holds a resolved reference in the record at %d", bad)
	}

	dst, con := newTestInterp(t)
	if err := dst.unmarshalImage(data); err != nil {
		t.Fatalf("unmarshalImage: %v", err)
	}

	// Same length as line 20, so the old target offset now lands on it
	enter(t, dst, "5 REM 123456789012345")

	if got := rerun(t, dst, con); got != "right\n" {
		t.Errorf("run after loading and editing = %q", got)
	}
}

func TestImageRejectsResolvedReferences(t *testing.T) {

	src, con := newTestInterp(t)
	enter(t, src, "10 GOTO 30", "20 PRINT \"wrong\"", "30 PRINT \"right\"")
	rerun(t, src, con)

	img := workspaceImage{
		Magic:   imageMagic,
		Version: imageVersion,
		Program: append([]byte{}, src.ws.mem[src.ws.page:src.ws.top]...),
	}

	data, err := imageEncMode.Marshal(&img)
	if err != nil {
		t.Fatal(err)
	}

	dst, _ := newTestInterp(t)

	if err := dst.unmarshalImage(data); !isError(err, EBADPROG) {
		t.Fatalf("unmarshalImage = %v, want %s", err, EBADPROG)
	}

	if !dst.badProgram || len(listing(dst)) != 0 {
		t.Errorf("bad %t, listing %q", dst.badProgram, listing(dst))
	}
}

func TestImageLinesOutOfOrder(t *testing.T) {

	src, _ := newTestInterp(t)
	enter(t, src, "10 PRINT \"ten\"", "20 PRINT \"twenty\"")

	data, err := src.marshalImage()
	if err != nil {
		t.Fatal(err)
	}

	var img workspaceImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		t.Fatal(err)
	}

	setLineNumber(img.Program, 0, 30)

	if data, err = imageEncMode.Marshal(&img); err != nil {
		t.Fatal(err)
	}

	dst, _ := newTestInterp(t)

	if err := dst.unmarshalImage(data); !isError(err, EBADPROG) {
		t.Fatalf("unmarshalImage = %v, want %s", err, EBADPROG)
	}

	if want := []string{"30 PRINT \"ten\""}; !dst.badProgram || !reflect.DeepEqual(listing(dst), want) {
		t.Errorf("bad %t, listing %q, want %q", dst.badProgram, listing(dst), want)
	}
}
