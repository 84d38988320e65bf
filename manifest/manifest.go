// Package manifest handles fth.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "fth.toml"

// Manifest represents an fth.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	VM       VMConfig       `toml:"vm"`
	Compiler CompilerConfig `toml:"compiler"`
	Log      LogConfig      `toml:"log"`
	Cache    CacheConfig    `toml:"cache"`

	// Dir is the directory containing the fth.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	Trace         bool `toml:"trace"`
	StackCapacity int  `toml:"stack-capacity"`
}

// CompilerConfig configures compilation.
type CompilerConfig struct {
	DedupConstants bool `toml:"dedup-constants"`
	BorrowStrings  bool `toml:"borrow-strings"`
	Disassemble    bool `toml:"disassemble"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// CacheConfig configures the compiled chunk cache. An empty path disables
// it.
type CacheConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no fth.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.VM.StackCapacity < 0 {
		m.VM.StackCapacity = 0
	}
}

// Load parses an fth.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find an fth.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Dedup reports whether constant deduplication is enabled.
func (m *Manifest) Dedup() bool {
	return m.Compiler.DedupConstants
}

// CachePath returns the cache database path resolved against the manifest
// directory, or "" if caching is off.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// LogPath returns the log file path resolved against the manifest
// directory, or "" for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

// EntryPath returns the entry script path, or "" if none is configured.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
