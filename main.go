// Command vela compiles Vela source code into bytecode and runs it on a
// stack-based virtual machine.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vela-lang/vela/compiler"
	"github.com/vela-lang/vela/internal/config"
	"github.com/vela-lang/vela/internal/debugdump"
	"github.com/vela-lang/vela/internal/runlog"
	"github.com/vela-lang/vela/lexer"
	"github.com/vela-lang/vela/parser"
	"github.com/vela-lang/vela/repl"
	"github.com/vela-lang/vela/vm"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "vela",
		Usage:   "compile and run Vela programs",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "vela.yaml", Usage: "path to a vela.yaml configuration file"},
			&cli.BoolFlag{Name: "debug", Usage: "enable verbose per-phase logging"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable REPL syntax highlighting"},
		},
		Action: func(c *cli.Context) error {
			return runREPL(c)
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "compile and execute a script file",
				ArgsUsage: "<file>",
				Action:    cmdRun,
			},
			{
				Name:  "eval",
				Usage: "compile and execute an inline expression, printing the result",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "eval", Aliases: []string{"e"}, Required: true, Usage: "Vela source to evaluate"},
				},
				Action: cmdEval,
			},
			{
				Name:   "repl",
				Usage:  "start the interactive REPL",
				Action: runREPL,
			},
			{
				Name:      "disasm",
				Usage:     "compile only, print the disassembly and constant pool",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "emit the dump as JSON instead of plain text"},
				},
				Action: cmdDisasm,
			},
			{
				Name:      "check",
				Usage:     "compile only, report compile errors",
				ArgsUsage: "<file>",
				Action:    cmdCheck,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) config.Config {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return config.Default()
	}
	if c.Bool("debug") {
		cfg.REPL.Debug = true
	}
	if c.Bool("no-color") {
		cfg.REPL.NoColor = true
	}
	return cfg
}

// compileSource lexes and parses source into a *compiler.Bytecode, logging
// each pipeline phase against run.
func compileSource(run *runlog.Run, source string) (*compiler.Bytecode, error) {
	start := time.Now()
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	run.Phase(runlog.PhaseParse, time.Since(start), nil)

	if len(p.Errors()) != 0 {
		err := fmt.Errorf("parse errors: %v", p.Errors())
		run.Phase(runlog.PhaseParse, 0, err)
		return nil, err
	}

	start = time.Now()
	comp := compiler.New()
	err := comp.Compile(program)
	run.Phase(runlog.PhaseCompile, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	return comp.Bytecode(), nil
}

func vmOptions(cfg config.Config) vm.Options {
	opts := vm.DefaultOptions()
	if cfg.VM.StackSize > 0 {
		opts.StackSize = cfg.VM.StackSize
	}
	if cfg.VM.GlobalsSize > 0 {
		opts.GlobalsSize = cfg.VM.GlobalsSize
	}
	if cfg.VM.FrameSize > 0 {
		opts.MaxFrames = cfg.VM.FrameSize
	}
	return opts
}

func cmdRun(c *cli.Context) error {
	filename := c.Args().First()
	if filename == "" {
		return cli.Exit("run requires a file argument", 1)
	}

	content, err := os.ReadFile(filename) //nolint:gosec // operator-supplied script path
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %s", filename, err), 1)
	}

	cfg := loadConfig(c)
	run := runlog.New("run")
	bytecode, err := compileSource(run, string(content))
	if err != nil {
		run.Finish(err)
		return cli.Exit(err, 1)
	}

	start := time.Now()
	machine := vm.NewWithOptions(bytecode, vmOptions(cfg))
	err = machine.Run()
	run.Phase(runlog.PhaseRun, time.Since(start), err)
	run.Finish(err)
	if err != nil {
		return cli.Exit(fmt.Sprintf("runtime error: %s", err), 1)
	}

	return nil
}

func cmdEval(c *cli.Context) error {
	cfg := loadConfig(c)
	run := runlog.New("eval")
	bytecode, err := compileSource(run, c.String("eval"))
	if err != nil {
		run.Finish(err)
		return cli.Exit(err, 1)
	}

	start := time.Now()
	machine := vm.NewWithOptions(bytecode, vmOptions(cfg))
	err = machine.Run()
	run.Phase(runlog.PhaseRun, time.Since(start), err)
	run.Finish(err)
	if err != nil {
		return cli.Exit(fmt.Sprintf("runtime error: %s", err), 1)
	}

	fmt.Println(machine.LastPoppedStackElem().Inspect())
	return nil
}

func cmdDisasm(c *cli.Context) error {
	filename := c.Args().First()
	if filename == "" {
		return cli.Exit("disasm requires a file argument", 1)
	}

	content, err := os.ReadFile(filename) //nolint:gosec // operator-supplied script path
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %s", filename, err), 1)
	}

	run := runlog.New("disasm")
	bytecode, err := compileSource(run, string(content))
	run.Finish(err)
	if err != nil {
		return cli.Exit(err, 1)
	}

	dump := debugdump.FromBytecode(bytecode)
	if c.Bool("json") {
		os.Stdout.Write(debugdump.Encode(dump)) //nolint:errcheck
		fmt.Println()
		return nil
	}

	fmt.Println(dump.Disassembly)
	fmt.Println("Constants:")
	for i, constant := range dump.Constants {
		fmt.Printf("  %d: %s\n", i, constant)
	}
	return nil
}

func cmdCheck(c *cli.Context) error {
	filename := c.Args().First()
	if filename == "" {
		return cli.Exit("check requires a file argument", 1)
	}

	content, err := os.ReadFile(filename) //nolint:gosec // operator-supplied script path
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %s", filename, err), 1)
	}

	run := runlog.New("check")
	_, err = compileSource(run, string(content))
	run.Finish(err)
	if err != nil {
		return cli.Exit(err, 1)
	}

	fmt.Println("ok")
	return nil
}

func runREPL(c *cli.Context) error {
	cfg := loadConfig(c)
	run := runlog.New("repl")
	repl.Start("", repl.Options{NoColor: cfg.REPL.NoColor, Debug: cfg.REPL.Debug})
	run.Finish(nil)
	return nil
}
