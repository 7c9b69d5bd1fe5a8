package toolchain

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in language table for the current platform.
func Default() Table {
	return defaultsFor(runtime.GOOS)
}

func defaultsFor(goos string) Table {
	cc, altCC := "clang", "gcc"
	cxx, altCXX := "clang++", "g++"
	if goos == "windows" {
		cc, altCC = "gcc", "clang"
		cxx, altCXX = "g++", "clang++"
	}

	return Table{
		"python": {
			Extension: ".py",
			Run:       []string{"python3", "-u", SourcePlaceholder},
			AltRun:    []string{"python", "-u", SourcePlaceholder},
		},
		"javascript": {
			Extension: ".js",
			Run:       []string{"node", SourcePlaceholder},
		},
		"ruby": {
			Extension: ".rb",
			Run:       []string{"ruby", SourcePlaceholder},
		},
		"c": {
			Extension:  ".c",
			Compile:    []string{cc, SourcePlaceholder, "-o", OutputPlaceholder},
			AltCompile: []string{altCC, SourcePlaceholder, "-o", OutputPlaceholder},
			Run:        []string{OutputPlaceholder},
		},
		"cpp": {
			Extension:  ".cpp",
			Compile:    []string{cxx, SourcePlaceholder, "-o", OutputPlaceholder},
			AltCompile: []string{altCXX, SourcePlaceholder, "-o", OutputPlaceholder},
			Run:        []string{OutputPlaceholder},
		},
		"go": {
			Extension: ".go",
			Compile:   []string{"go", "build", "-o", OutputPlaceholder, SourcePlaceholder},
			Run:       []string{OutputPlaceholder},
		},
	}
}

// LoadFile reads a YAML toolchain table, e.g.
//
//	bash:
//	  extension: .sh
//	  run: [bash, "{source}"]
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading toolchains %s: %w", path, err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing toolchains %s: %w", path, err)
	}

	for lang, tc := range t {
		if len(tc.Run) == 0 {
			return nil, fmt.Errorf("toolchain %s: run command is required", lang)
		}
	}
	return Table{}.Merge(t), nil
}
