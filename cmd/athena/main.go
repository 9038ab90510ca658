package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"athena/config"
	"athena/db"
	"athena/parser"
	"athena/server"
	"athena/symbols"
	"athena/trace"
	"athena/vm"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Configuration file (YAML)")
	runFile := flag.String("run", "", "Run a script file, answering prompts from stdin")
	disasmFile := flag.String("disasm", "", "Compile a script file and print its bytecode")
	checkFile := flag.String("check", "", "Compile a script file and report diagnostics")
	serve := flag.Bool("serve", false, "Start the dialogue server")
	actor := flag.Int("actor", 1, "Actor ID for -run")
	debug := flag.Bool("debug", false, "Development logging")

	traceEnabled := flag.Bool("trace", false, "Enable execution tracing")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (glob, e.g., 'guide*')")

	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filters := cfg.Trace.Filters
	if *traceFilter != "" {
		filters = strings.Split(*traceFilter, ",")
		for i := range filters {
			filters[i] = strings.TrimSpace(filters[i])
		}
	}
	trace.Init(*traceEnabled || cfg.Trace.Enabled, filters, os.Stderr)

	switch {
	case *checkFile != "":
		os.Exit(checkCommand(cfg, log, *checkFile))
	case *disasmFile != "":
		os.Exit(disasmCommand(cfg, log, *disasmFile))
	case *runFile != "":
		os.Exit(runCommand(cfg, log, *runFile, *actor))
	case *serve:
		if err := serveCommand(cfg, log); err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// newLogger builds a production or development zap logger
func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// colorOutput reports whether stderr is a terminal
func colorOutput() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newSymbols creates the intern table with the constants file loaded
func newSymbols(cfg *config.Config) (*symbols.Table, *config.Constants, error) {
	syms := symbols.NewTable()
	if cfg.Script.Constants == "" {
		return syms, &config.Constants{}, nil
	}
	consts, err := config.LoadConstants(cfg.Path(cfg.Script.Constants))
	if err != nil {
		return nil, nil, err
	}
	if err := consts.Register(syms); err != nil {
		return nil, nil, err
	}
	return syms, consts, nil
}

// newEngine builds an engine from the config over vars and host
func newEngine(cfg *config.Config, log *zap.Logger, opts vm.Options) (*vm.Engine, error) {
	syms, consts, err := newSymbols(cfg)
	if err != nil {
		return nil, err
	}
	base, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	base.Symbols = syms
	base.Vars = opts.Vars
	base.Host = opts.Host
	base.Logger = log
	eng, err := vm.NewEngine(base)
	if err != nil {
		return nil, err
	}
	if err := consts.DefineFunctions(eng); err != nil {
		return nil, err
	}
	return eng, nil
}

// compileFile compiles path, printing diagnostics to stderr
func compileFile(eng *vm.Engine, path string) (*vm.Program, bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, false
	}
	name := filepath.Base(path)
	color := colorOutput()

	prog, err := eng.CompileNamed(name, string(src), 1)
	if err != nil {
		var se *parser.SyntaxError
		if errors.As(err, &se) {
			fmt.Fprint(os.Stderr, se.Diagnostic.Render(name, color))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return nil, false
	}
	if prog != nil {
		for _, d := range prog.Warnings {
			fmt.Fprint(os.Stderr, d.Render(name, color))
		}
	}
	return prog, true
}

func checkCommand(cfg *config.Config, log *zap.Logger, path string) int {
	eng, err := newEngine(cfg, log, vm.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	prog, ok := compileFile(eng, path)
	if !ok {
		return 1
	}
	warnings := 0
	if prog != nil {
		warnings = len(prog.Warnings)
	}
	fmt.Printf("%s: ok (%d warning(s))\n", path, warnings)
	return 0
}

func disasmCommand(cfg *config.Config, log *zap.Logger, path string) int {
	eng, err := newEngine(cfg, log, vm.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	prog, ok := compileFile(eng, path)
	if !ok {
		return 1
	}
	if prog == nil {
		fmt.Println("(empty script)")
		return 0
	}
	fmt.Print(prog.Disassemble())
	return 0
}

func runCommand(cfg *config.Config, log *zap.Logger, path string, actor int) int {
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeStore()

	host := newConsoleHost(os.Stdin, os.Stdout)
	eng, err := newEngine(cfg, log, vm.Options{Vars: store, Host: host})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	prog, ok := compileFile(eng, path)
	if !ok {
		return 1
	}
	st, err := eng.Start(prog, actor, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := host.drive(eng, st); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if st.Err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), st.Err)
		return 1
	}
	return 0
}

// openStore opens the configured variable backend
func openStore(cfg *config.Config, log *zap.Logger) (*db.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		backend, err := db.OpenSQLite(cfg.Path(cfg.Storage.DSN))
		if err != nil {
			return nil, nil, err
		}
		store := db.NewStore(backend, log)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("close storage", zap.Error(err))
			}
		}, nil
	}

	mem := db.NewMemoryBackend()
	store := db.NewStore(mem, log)
	if cfg.Storage.Snapshot == "" {
		return store, func() {}, nil
	}
	cm := db.NewCheckpointManager(cfg.Path(cfg.Storage.Snapshot), mem, cfg.Storage.Checkpoint, log)
	if err := cm.Load(); err != nil {
		return nil, nil, err
	}
	cm.Start()
	return store, func() {
		cm.Stop()
		if err := cm.Checkpoint(db.DumpShutdown); err != nil {
			log.Error("final checkpoint failed", zap.Error(err))
		}
	}, nil
}

func serveCommand(cfg *config.Config, log *zap.Logger) error {
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	syms, consts, err := newSymbols(cfg)
	if err != nil {
		return err
	}
	engOpts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	engOpts.Symbols = syms
	engOpts.Vars = store

	srv, err := server.NewServer(server.Options{Engine: engOpts, Store: store, Logger: log})
	if err != nil {
		return err
	}
	if err := consts.DefineFunctions(srv.Engine()); err != nil {
		return err
	}
	if cfg.Server.NPCs != "" {
		npcs, err := config.LoadNPCs(cfg.Path(cfg.Server.NPCs))
		if err != nil {
			return err
		}
		for _, npc := range npcs {
			if err := srv.AddNPC(npc.Name, npc.ID, npc.Script.Source, npc.Script.Line); err != nil {
				return err
			}
		}
		log.Info("npcs loaded", zap.Int("count", len(npcs)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, cfg.Server.Listen)
}
