//go:build !js

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"hackvm/pkg/asm"
	"hackvm/pkg/codegen"
	"hackvm/pkg/cpu"
	"hackvm/pkg/translator"
	"hackvm/pkg/utils"
	"hackvm/pkg/vm"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hackvm: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hackvm",
		Short: "Hack VM translator, assembler and emulator",
		Long: `hackvm translates stack-based VM programs into Hack assembly.

A single .vm file translates to <name>.asm beside it. A directory
translates every .vm file in it, in name order, to <dir>/<dir>.asm,
preceded by bootstrap code that calls Sys.init.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTranslateCmd(), newAssembleCmd(), newRunCmd(), newDumpCmd())
	return root
}

func newTranslateCmd() *cobra.Command {
	var output, bootstrap string

	cmd := &cobra.Command{
		Use:   "translate path",
		Short: "Translate a .vm file or a directory of .vm files to Hack assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := translator.ParseBootstrapMode(bootstrap)
			if err != nil {
				return err
			}
			res, err := translator.TranslatePath(args[0], output, mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "translated %d units (%s) -> %s\n",
				len(res.Units), strings.Join(res.Units, ", "), res.Output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .asm path (default: derived from the input)")
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "auto", "emit bootstrap code: auto (directories only), always or never")
	return cmd
}

func newAssembleCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "assemble file.asm",
		Short: "Assemble Hack assembly into a .hack binary text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			program, _, err := asm.Assemble(string(source))
			if err != nil {
				return fmt.Errorf("assembly failed: %w", err)
			}
			if output == "" {
				output = utils.OutputPath(args[0], ".hack")
			}
			if err := os.WriteFile(output, []byte(asm.Format(program)), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assembled %d words -> %s\n", len(program), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .hack path (default: input with .hack extension)")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		bootstrap  string
		steps      uint64
		screenshot string
		scale      int
	)

	cmd := &cobra.Command{
		Use:   "run path",
		Short: "Translate, assemble and execute a program on the Hack emulator",
		Long: `Run executes a .vm file, a directory of .vm files or a .asm file on the
Hack emulator until it reaches an "(END) @END 0;JMP" loop or the step
limit, then prints the registers and the stack.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := translator.ParseBootstrapMode(bootstrap)
			if err != nil {
				return err
			}
			code, err := loadAssembly(args[0], mode)
			if err != nil {
				return err
			}
			program, _, err := asm.Assemble(code)
			if err != nil {
				return fmt.Errorf("assembly failed: %w", err)
			}

			c := cpu.NewCPU()
			if err := c.Load(program); err != nil {
				return err
			}
			runErr := c.RunFor(steps)
			printState(cmd.OutOrStdout(), c)

			if screenshot != "" {
				if err := c.SaveScreenshot(screenshot, scale); err != nil {
					return fmt.Errorf("screenshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "screenshot -> %s\n", screenshot)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "auto", "emit bootstrap code: auto (directories only), always or never")
	cmd.Flags().Uint64Var(&steps, "steps", 1_000_000, "maximum number of instructions to execute")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "write the final screen to this PNG file")
	cmd.Flags().IntVar(&scale, "scale", 1, "screenshot scale factor")
	return cmd
}

// loadAssembly returns Hack assembly for path: .asm files are read as is,
// anything else is translated.
func loadAssembly(path string, mode translator.BootstrapMode) (string, error) {
	if filepath.Ext(path) == ".asm" {
		data, err := os.ReadFile(path)
		return string(data), err
	}
	return translator.TranslateToString(path, mode)
}

func printState(w io.Writer, c *cpu.CPU) {
	status := "halted"
	switch {
	case c.Fault != nil:
		status = "fault: " + c.Fault.Error()
	case !c.Halted:
		status = "running"
	}
	fmt.Fprintf(w, "run complete (%s): steps=%d PC=%d A=%d D=%d\n",
		status, c.Steps, c.PC, int16(c.A), int16(c.D))
	fmt.Fprintf(w, "SP=%d LCL=%d ARG=%d THIS=%d THAT=%d\n",
		c.Peek(cpu.SP), c.Peek(cpu.LCL), c.Peek(cpu.ARG), c.Peek(cpu.THIS), c.Peek(cpu.THAT))
	fmt.Fprintf(w, "stack: %v\n", c.Stack(codegen.StackBase))
}

func newDumpCmd() *cobra.Command {
	var useSpew bool

	cmd := &cobra.Command{
		Use:   "dump path",
		Short: "Print the decoded VM commands of a .vm file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := translator.OpenPath(args[0], translator.BootstrapNever)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			for _, u := range p.Units {
				if err := dumpUnit(out, u, useSpew); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useSpew, "spew", false, "dump the full command values")
	return cmd
}

func dumpUnit(w io.Writer, u translator.Unit, useSpew bool) error {
	scanner := bufio.NewScanner(u.Source)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := translator.CleanLine(scanner.Text())
		if line == "" {
			continue
		}
		command, err := vm.Decode(line)
		if err != nil {
			var ice *vm.InvalidCommandError
			if errors.As(err, &ice) {
				ice.Unit, ice.Line = u.Name, lineNo
			}
			return err
		}
		fmt.Fprintf(w, "%s:%d\t%-10s %s\n", u.Name, lineNo, command.Kind(), command)
		if useSpew {
			spew.Fdump(w, command)
		}
	}
	return scanner.Err()
}
