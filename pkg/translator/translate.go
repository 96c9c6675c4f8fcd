// Package translator drives a translation run: it reads VM source units line
// by line, decodes each line and feeds the commands to a single CodeWriter.
//
// Pipeline: VM source → CleanLine → vm.Decode → codegen.CodeWriter → Hack assembly
package translator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hackvm/pkg/codegen"
	"hackvm/pkg/utils"
	"hackvm/pkg/vm"
)

// Unit is one VM source file.
type Unit struct {
	Name   string // qualifier for static symbols, e.g. "Main"
	Source io.Reader
}

// BootstrapMode selects whether the bootstrap code is emitted.
type BootstrapMode int

const (
	BootstrapAuto   BootstrapMode = iota // only for directories
	BootstrapAlways                      // always
	BootstrapNever                       // never
)

// ParseBootstrapMode accepts "auto", "always" or "never".
func ParseBootstrapMode(s string) (BootstrapMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return BootstrapAuto, nil
	case "always":
		return BootstrapAlways, nil
	case "never":
		return BootstrapNever, nil
	}
	return BootstrapAuto, fmt.Errorf("unknown bootstrap mode %q (want auto, always or never)", s)
}

func (m BootstrapMode) String() string {
	switch m {
	case BootstrapAlways:
		return "always"
	case BootstrapNever:
		return "never"
	default:
		return "auto"
	}
}

// Options configures Translate.
type Options struct {
	// Bootstrap emits SP=256 and call Sys.init 0 before any unit.
	Bootstrap bool
}

// CleanLine strips a trailing // comment and surrounding whitespace.
func CleanLine(raw string) string {
	if i := strings.Index(raw, "//"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// Translate writes the assembly for units, in order, to w. Translation stops
// at the first invalid command; the returned error then carries the unit name
// and line number. Output produced before the error is flushed to w.
func Translate(w io.Writer, units []Unit, opts Options) (err error) {
	bw := bufio.NewWriter(w)
	defer func() {
		if ferr := bw.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush output: %w", ferr)
		}
	}()

	cw := codegen.NewCodeWriter(bw)
	if opts.Bootstrap {
		if err := cw.WriteInit(); err != nil {
			return err
		}
	}

	for _, u := range units {
		if err := translateUnit(cw, u); err != nil {
			return err
		}
	}
	return nil
}

func translateUnit(cw *codegen.CodeWriter, u Unit) error {
	cw.SetUnit(u.Name)

	scanner := bufio.NewScanner(u.Source)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := CleanLine(scanner.Text())
		if line == "" {
			continue
		}

		cmd, err := vm.Decode(line)
		if err == nil {
			err = cw.Emit(cmd)
		}
		if err != nil {
			var ice *vm.InvalidCommandError
			if errors.As(err, &ice) {
				ice.Unit = u.Name
				ice.Line = lineNo
				return ice
			}
			return fmt.Errorf("%s:%d: %w", u.Name, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", u.Name, err)
	}
	return nil
}

// Result describes a finished TranslatePath run.
type Result struct {
	Output string   // path of the written .asm file
	Units  []string // unit names in translation order
}

// Program is the set of units found at a path, opened for reading.
type Program struct {
	Units   []Unit
	Options Options
	Output  string // default .asm path
}

// OpenPath opens a single .vm file or every .vm file of a directory, sorted
// by name. A file translates to <name>.asm beside it; a directory to
// <dir>/<dir>.asm. The caller must Close the program.
func OpenPath(path string, mode BootstrapMode) (*Program, error) {
	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}

	p := &Program{}
	var files []string
	if info.IsDir() {
		files, err = utils.ListVMFiles(fullPath)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .vm files in %s", fullPath)
		}
		p.Output = filepath.Join(fullPath, filepath.Base(fullPath)+".asm")
	} else {
		files = []string{fullPath}
		p.Output = utils.OutputPath(fullPath, ".asm")
	}
	p.Options.Bootstrap = mode == BootstrapAlways || (mode == BootstrapAuto && info.IsDir())

	for _, f := range files {
		src, err := os.Open(f)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Units = append(p.Units, Unit{Name: utils.UnitName(f), Source: src})
	}
	return p, nil
}

// Names returns the unit names in translation order.
func (p *Program) Names() []string {
	names := make([]string, len(p.Units))
	for i, u := range p.Units {
		names[i] = u.Name
	}
	return names
}

func (p *Program) Close() {
	closeAll(p.Units)
}

// TranslatePath translates the program at path and writes it to out, or to
// the program's default output path when out is empty.
func TranslatePath(path, out string, mode BootstrapMode) (*Result, error) {
	p, err := OpenPath(path, mode)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	if out == "" {
		out = p.Output
	}
	dst, err := os.Create(out)
	if err != nil {
		return nil, err
	}
	err = Translate(dst, p.Units, p.Options)
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Units: p.Names()}, nil
}

// TranslateToString translates the program at path in memory.
func TranslateToString(path string, mode BootstrapMode) (string, error) {
	p, err := OpenPath(path, mode)
	if err != nil {
		return "", err
	}
	defer p.Close()

	var sb strings.Builder
	err = Translate(&sb, p.Units, p.Options)
	return sb.String(), err
}

// TranslateString translates VM source text held in memory, as used by the
// desktop viewer and tests.
func TranslateString(units map[string]string, opts Options) (string, error) {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]Unit, 0, len(names))
	for _, name := range names {
		list = append(list, Unit{Name: name, Source: strings.NewReader(units[name])})
	}

	var sb strings.Builder
	if err := Translate(&sb, list, opts); err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

func closeAll(units []Unit) {
	for _, u := range units {
		if c, ok := u.Source.(io.Closer); ok {
			c.Close()
		}
	}
}
