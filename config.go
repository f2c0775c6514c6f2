package main

import (
	"errors"
	"fmt"
	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"io/fs"
	"os"
)

const defaultConfigFile = "brandy.toml"

//
// brandy.toml:
//
//   [workspace]
//   size_kb = 640
//
//   [library]
//   path = ["/usr/local/lib/brandy"]
//
//   [trace]
//   exec = false
//   dump = false
//   stats = false
//
//   [log]
//   verbosity = 0
//   file = "brandy.log"
//

type config struct {
	Workspace struct {
		SizeKB int `toml:"size_kb"`
	} `toml:"workspace"`

	Library struct {
		Path []string `toml:"path"`
	} `toml:"library"`

	Trace struct {
		Exec  bool `toml:"exec"`
		Dump  bool `toml:"dump"`
		Stats bool `toml:"stats"`
	} `toml:"trace"`

	Log struct {
		Verbosity int    `toml:"verbosity"`
		File      string `toml:"file"`
	} `toml:"log"`
}

func defaultConfig() *config {

	cfg := &config{}
	cfg.Workspace.SizeKB = defaultWorkspaceKB

	return cfg
}

//
// A missing file just means the defaults.  A file that will not parse
// is reported, and the defaults are used anyway
//

func loadConfig(path string) (*config, error) {

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return defaultConfig(), fmt.Errorf("cannot parse %s: %w", path, err)
	}

	if cfg.Workspace.SizeKB == 0 {
		cfg.Workspace.SizeKB = defaultWorkspaceKB
	}

	return cfg, nil
}

//
// Logging is off unless asked for, since log records would land in the
// middle of the program's output
//

func (cfg *config) configureLogging() {

	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}

	verbosity := cfg.Log.Verbosity
	if verbosity == 0 && path == nil {
		verbosity = -1
	}

	commonlog.Configure(verbosity, path)
}

func (cfg *config) applyTrace(in *interp) {

	in.traceExec = cfg.Trace.Exec
	in.traceDump = cfg.Trace.Dump
	in.printStats = cfg.Trace.Stats
}
