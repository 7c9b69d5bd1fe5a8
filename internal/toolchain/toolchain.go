package toolchain

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Placeholders substituted into argv templates.
const (
	SourcePlaceholder = "{source}"
	OutputPlaceholder = "{output}"
)

// Toolchain describes how to build and run one language.
type Toolchain struct {
	Extension string `yaml:"extension"`

	// Compile is empty for interpreted languages.
	Compile    []string `yaml:"compile"`
	AltCompile []string `yaml:"alt_compile"`

	Run    []string `yaml:"run"`
	AltRun []string `yaml:"alt_run"`
}

// Compiled reports whether the language needs a compile step before running.
func (t Toolchain) Compiled() bool {
	return len(t.Compile) > 0
}

// CompileArgs expands the primary compile template.
func (t Toolchain) CompileArgs(source, output string) []string {
	return expand(t.Compile, source, output)
}

// AltCompileArgs expands the alternate compile template, or nil if none is set.
func (t Toolchain) AltCompileArgs(source, output string) []string {
	return expand(t.AltCompile, source, output)
}

// RunArgs expands the primary run template.
func (t Toolchain) RunArgs(source, output string) []string {
	return expand(t.Run, source, output)
}

// AltRunArgs expands the alternate run template, or nil if none is set.
func (t Toolchain) AltRunArgs(source, output string) []string {
	return expand(t.AltRun, source, output)
}

func expand(tmpl []string, source, output string) []string {
	if len(tmpl) == 0 {
		return nil
	}
	args := make([]string, len(tmpl))
	for i, a := range tmpl {
		a = strings.ReplaceAll(a, SourcePlaceholder, source)
		a = strings.ReplaceAll(a, OutputPlaceholder, output)
		args[i] = a
	}
	return args
}

// ExecutableExtension is the suffix given to compiled artifacts on this platform.
func ExecutableExtension() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ".out"
}

// Table maps a lowercase language id to its toolchain.
type Table map[string]Toolchain

// Lookup returns the toolchain for language, matching case-insensitively.
func (t Table) Lookup(language string) (Toolchain, bool) {
	tc, ok := t[strings.ToLower(strings.TrimSpace(language))]
	return tc, ok
}

// Languages returns the sorted language ids in the table.
func (t Table) Languages() []string {
	langs := make([]string, 0, len(t))
	for lang := range t {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// LanguageForFile infers a language id from a file name's extension.
func (t Table) LanguageForFile(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "", fmt.Errorf("cannot infer language of %s: no extension", name)
	}
	for _, lang := range t.Languages() {
		if t[lang].Extension == ext {
			return lang, nil
		}
	}
	return "", fmt.Errorf("no language registered for extension %s", ext)
}

// Merge returns a copy of t with the entries of override replacing or adding to it.
func (t Table) Merge(override Table) Table {
	out := make(Table, len(t)+len(override))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range override {
		out[strings.ToLower(k)] = v
	}
	return out
}
