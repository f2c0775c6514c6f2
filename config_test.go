package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadConfig(t *testing.T) {

	dir := t.TempDir()

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	full := write("full.toml", `
[workspace]
size_kb = 128

[library]
path = ["/opt/basic", "lib"]

[trace]
exec = true
stats = true

[log]
verbosity = 2
file = "brandy.log"
`)

	cfg, err := loadConfig(full)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Workspace.SizeKB != 128 {
		t.Errorf("size_kb = %d", cfg.Workspace.SizeKB)
	}

	if want := []string{"/opt/basic", "lib"}; !reflect.DeepEqual(cfg.Library.Path, want) {
		t.Errorf("library path = %q", cfg.Library.Path)
	}

	if !cfg.Trace.Exec || cfg.Trace.Dump || !cfg.Trace.Stats {
		t.Errorf("trace = %+v", cfg.Trace)
	}

	if cfg.Log.Verbosity != 2 || cfg.Log.File != "brandy.log" {
		t.Errorf("log = %+v", cfg.Log)
	}

	cfg, err = loadConfig(filepath.Join(dir, "absent.toml"))
	if err != nil || cfg.Workspace.SizeKB != defaultWorkspaceKB {
		t.Errorf("missing file: %v, size %d", err, cfg.Workspace.SizeKB)
	}

	cfg, err = loadConfig(write("partial.toml", "[trace]\ndump = true\n"))
	if err != nil || cfg.Workspace.SizeKB != defaultWorkspaceKB || !cfg.Trace.Dump {
		t.Errorf("partial file: %v, %+v", err, cfg)
	}

	cfg, err = loadConfig(write("broken.toml", "[workspace\nsize_kb = "))
	if err == nil {
		t.Errorf("broken file accepted")
	}
	if cfg == nil || cfg.Workspace.SizeKB != defaultWorkspaceKB {
		t.Errorf("broken file did not fall back to the defaults")
	}
}

func TestApplyTrace(t *testing.T) {

	cfg := defaultConfig()
	cfg.Trace.Exec = true
	cfg.Trace.Dump = true

	in, err := newInterp(cfg, &bufferConsole{})
	if err != nil {
		t.Fatal(err)
	}

	if !in.traceExec || !in.traceDump || in.printStats {
		t.Errorf("trace flags exec %t dump %t stats %t", in.traceExec, in.traceDump, in.printStats)
	}
}

func TestParseArgs(t *testing.T) {

	tests := []struct {
		args    []string
		want    options
		wantErr bool
	}{
		{
			args: nil,
			want: options{configFile: defaultConfigFile},
		},
		{
			args: []string{"-size", "64", "-lib", "a.bas", "-lib", "b.bas", "-quit", "prog.bas"},
			want: options{configFile: defaultConfigFile, sizeKB: 64, quit: true,
				libs: []string{"a.bas", "b.bas"}, program: "prog.bas"},
		},
		{
			args: []string{"-config", "my.toml", "-image", "ws.cbor"},
			want: options{configFile: "my.toml", image: "ws.cbor"},
		},
		{args: []string{"-size"}, wantErr: true},
		{args: []string{"-size", "big"}, wantErr: true},
		{args: []string{"-bogus"}, wantErr: true},
		{args: []string{"a.bas", "b.bas"}, wantErr: true},
		{args: []string{"-quit"}, wantErr: true},
	}

	for _, tt := range tests {
		opts, err := parseArgs(tt.args)

		if (err != nil) != tt.wantErr {
			t.Errorf("parseArgs(%q) error = %v, wantErr %t", tt.args, err, tt.wantErr)
			continue
		}

		if !tt.wantErr && !reflect.DeepEqual(opts, tt.want) {
			t.Errorf("parseArgs(%q) = %+v, want %+v", tt.args, opts, tt.want)
		}
	}
}
