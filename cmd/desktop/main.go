package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/cobra"

	"hackvm/pkg/asm"
	"hackvm/pkg/cpu"
	"hackvm/pkg/translator"
	"hackvm/pkg/utils"
)

// Hack keyboard codes for keys without a printable character.
const (
	keyNewline   = 128
	keyBackspace = 129
	keyLeft      = 130
	keyUp        = 131
	keyRight     = 132
	keyDown      = 133
	keyHome      = 134
	keyEnd       = 135
	keyPageUp    = 136
	keyPageDown  = 137
	keyInsert    = 138
	keyDelete    = 139
	keyEscape    = 140
	keyF1        = 141
)

type specialKey struct {
	key  ebiten.Key
	code uint16
}

// specialKeys is checked in order; the first pressed entry wins.
var specialKeys = []specialKey{
	{ebiten.KeyEnter, keyNewline},
	{ebiten.KeyBackspace, keyBackspace},
	{ebiten.KeyArrowLeft, keyLeft},
	{ebiten.KeyArrowUp, keyUp},
	{ebiten.KeyArrowRight, keyRight},
	{ebiten.KeyArrowDown, keyDown},
	{ebiten.KeyHome, keyHome},
	{ebiten.KeyEnd, keyEnd},
	{ebiten.KeyPageUp, keyPageUp},
	{ebiten.KeyPageDown, keyPageDown},
	{ebiten.KeyInsert, keyInsert},
	{ebiten.KeyDelete, keyDelete},
	{ebiten.KeyEscape, keyEscape},
	{ebiten.KeyF1, keyF1},
	{ebiten.KeyF2, keyF1 + 1},
	{ebiten.KeyF3, keyF1 + 2},
	{ebiten.KeyF4, keyF1 + 3},
	{ebiten.KeyF5, keyF1 + 4},
	{ebiten.KeyF6, keyF1 + 5},
	{ebiten.KeyF7, keyF1 + 6},
	{ebiten.KeyF8, keyF1 + 7},
	{ebiten.KeyF9, keyF1 + 8},
	{ebiten.KeyF10, keyF1 + 9},
	{ebiten.KeyF11, keyF1 + 10},
	{ebiten.KeyF12, keyF1 + 11},
}

// hackKey returns the value of the keyboard register while pressed are held.
// lastChar is the most recent printable character typed.
func hackKey(pressed []ebiten.Key, lastChar uint16) uint16 {
	if len(pressed) == 0 {
		return 0
	}
	for _, sk := range specialKeys {
		for _, k := range pressed {
			if k == sk.key {
				return sk.code
			}
		}
	}
	return lastChar
}

type Game struct {
	vm            *cpu.CPU
	img           *ebiten.Image // reused 512×256 screen canvas
	stepsPerFrame int

	keys     []ebiten.Key
	chars    []rune
	lastChar uint16
}

func (g *Game) pollKeyboard() {
	g.chars = ebiten.AppendInputChars(g.chars[:0])
	for _, r := range g.chars {
		if r > 0 && r < keyNewline {
			g.lastChar = uint16(r)
		}
	}
	g.keys = inpututil.AppendPressedKeys(g.keys[:0])
	if len(g.keys) == 0 {
		g.lastChar = 0
	}
	g.vm.SetKey(hackKey(g.keys, g.lastChar))
}

func (g *Game) Update() error {
	g.pollKeyboard()

	for i := 0; i < g.stepsPerFrame; i++ {
		if g.vm.Halted {
			break
		}
		g.vm.Step()
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.img == nil {
		g.img = ebiten.NewImage(cpu.ScreenWidth, cpu.ScreenHeight)
	}
	g.img.WritePixels(g.vm.GetFramebufferRGBA())
	screen.DrawImage(g.img, nil)

	switch {
	case g.vm.Fault != nil:
		ebitenutil.DebugPrintAt(screen, "fault: "+g.vm.Fault.Error(), 4, cpu.ScreenHeight-16)
	case g.vm.Halted:
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("halted after %d steps", g.vm.Steps), 4, cpu.ScreenHeight-16)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.ScreenWidth, cpu.ScreenHeight
}

// load translates (or reads) the program at path and loads it into a new CPU.
func load(path string, mode translator.BootstrapMode, showAsm bool) (*cpu.CPU, error) {
	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return nil, err
	}

	var code string
	if filepath.Ext(fullPath) == ".asm" {
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return nil, err
		}
		code = string(data)
	} else {
		code, err = translator.TranslateToString(fullPath, mode)
		if err != nil {
			return nil, fmt.Errorf("translation failed: %w", err)
		}
	}
	if showAsm {
		fmt.Print(code)
	}

	program, _, err := asm.Assemble(code)
	if err != nil {
		return nil, fmt.Errorf("assembly failed: %w", err)
	}
	vm := cpu.NewCPU()
	if err := vm.Load(program); err != nil {
		return nil, err
	}
	return vm, nil
}

func main() {
	var (
		bootstrap     string
		stepsPerFrame int
		scale         int
		showAsm       bool
	)

	cmd := &cobra.Command{
		Use:   "desktop path",
		Short: "Run a VM program and show the Hack screen",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			mode, err := translator.ParseBootstrapMode(bootstrap)
			if err != nil {
				log.Fatalf("Invalid bootstrap mode: %v", err)
			}
			vm, err := load(args[0], mode, showAsm)
			if err != nil {
				log.Fatalf("Failed to load %s: %v", args[0], err)
			}

			ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
			ebiten.SetWindowSize(cpu.ScreenWidth*scale, cpu.ScreenHeight*scale)
			ebiten.SetWindowTitle("Hack VM - " + args[0])

			game := &Game{vm: vm, stepsPerFrame: stepsPerFrame}
			if err := ebiten.RunGame(game); err != nil {
				log.Fatal(err)
			}
		},
	}
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "always", "emit bootstrap code: auto, always or never")
	cmd.Flags().IntVar(&stepsPerFrame, "steps-per-frame", 50000, "instructions executed per frame")
	cmd.Flags().IntVar(&scale, "scale", 2, "window scale factor")
	cmd.Flags().BoolVar(&showAsm, "show-asm", false, "print the generated assembly")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
