// Command lox runs Lox scripts or starts an interactive session.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	lox "github.com/xirelogy/go-lox"
	"github.com/xirelogy/go-lox/internal/config"
)

const (
	historyFile = ".lox_history"
	prompt      = "> "
)

var log = commonlog.GetLogger("lox.cli")

// Exit codes follow sysexits.h.
const (
	exitOK      = 0
	exitUsage   = 64
	exitCompile = 65
	exitRuntime = 70
	exitIOError = 74
	exitConfig  = 78
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	flags := flag.NewFlagSet("lox", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to lox.toml (default: search upward from the working directory)")
	disassemble := flags.Bool("disassemble", false, "print the bytecode of the script instead of running it")
	trace := flags.Bool("trace", false, "trace every executed instruction to stderr")
	stress := flags.Bool("stress-gc", false, "collect garbage on every allocation")
	verbose := flags.Int("v", -1, "log verbosity (overrides the config file)")

	flags.Usage = func() {
		out := flags.Output()
		fmt.Fprintf(out, "Usage: lox [flags] [script]\n\n")
		fmt.Fprintf(out, "Runs script, or starts a REPL when no script is given.\n\n")
		fmt.Fprintf(out, "Flags:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	args := flags.Args()
	if len(args) > 1 || (*disassemble && len(args) == 0) {
		flags.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lox: %v\n", err)
		return exitConfig
	}
	if *stress {
		cfg.GC.Stress = true
	}
	if *trace {
		cfg.VM.Trace = true
	}
	if *verbose >= 0 {
		cfg.Log.Verbosity = *verbose
	}
	configureLogging(cfg)
	if cfg.Path != "" {
		log.Infof("using configuration %s", cfg.Path)
	}

	switch {
	case *disassemble:
		return runDisassemble(args[0])
	case len(args) == 1:
		return runFile(cfg, args[0])
	default:
		return runREPL(cfg)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Default(), nil
	}
	return config.Find(wd)
}

func configureLogging(cfg *config.Config) {
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

func newInterpreter(cfg *config.Config) *lox.Interpreter {
	hc := cfg.HeapConfig()
	opts := lox.Options{
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		InstructionLimit:   cfg.VM.InstructionLimit,
		GCInitialThreshold: hc.InitialThreshold,
		GCGrowFactor:       hc.GrowFactor,
		GCStress:           hc.Stress,
	}
	if cfg.VM.Trace {
		opts.Trace = os.Stderr
	}
	return lox.New(opts)
}

func exitCode(res lox.Result) int {
	switch res {
	case lox.ResultCompileError:
		return exitCompile
	case lox.ResultRuntimeError:
		return exitRuntime
	default:
		return exitOK
	}
}

func runFile(cfg *config.Config, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read file \"%s\": %v\n", path, err)
		return exitIOError
	}
	in := newInterpreter(cfg)
	defer in.Close()
	// Errors are already reported on stderr by the interpreter.
	res, _ := in.Interpret(string(src))
	stats := in.GCStats()
	log.Debug("finished", "script", path, "result", res.String(),
		"collections", stats.Collections, "freed", stats.Freed)
	return exitCode(res)
}

func runDisassemble(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read file \"%s\": %v\n", path, err)
		return exitIOError
	}
	if err := lox.Disassemble(string(src), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var cerr *lox.CompileError
		if errors.As(err, &cerr) {
			return exitCompile
		}
		return exitRuntime
	}
	return exitOK
}

func runREPL(cfg *config.Config) int {
	in := newInterpreter(cfg)
	defer in.Close()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	var histPath string
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			f.Close()
		}
	}

	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				break
			}
			// Ctrl+C abandons the current line.
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		// Errors are reported by the interpreter; the session keeps its
		// globals either way.
		_, _ = in.Interpret(line)
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			f.Close()
		}
	}
	return exitOK
}
