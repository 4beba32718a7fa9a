// minivm CLI - compiles and runs .mvm programs with optional profiling,
// tiered re-optimization, and bytecode inspection.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
	"github.com/Savani-Raj/minivm-plus/pkg/config"
	"github.com/Savani-Raj/minivm-plus/pkg/pipeline"
	"github.com/Savani-Raj/minivm-plus/pkg/profile"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	trace := flag.Bool("trace", false, "Dump each instruction as it executes")
	disasm := flag.Bool("disasm", false, "Print the lowered bytecode and exit")
	showProfile := flag.Bool("profile", false, "Print the profile report after execution")
	tiered := flag.Bool("tiers", false, "Re-optimize and re-run when the first run finds hot functions")
	configPath := flag.String("config", "", "TOML config file with thresholds and limits")
	profileDB := flag.String("profile-db", "", "SQLite database to persist the run's profile")
	runLabel := flag.String("run-label", "default", "Snapshot label used with -profile-db")
	imageOut := flag.String("emit-image", "", "Write the lowered module image to this file and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: minivm [options] <file.mvm>\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a program on the bytecode VM.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  minivm prog.mvm                  # Run\n")
		fmt.Fprintf(os.Stderr, "  minivm -disasm prog.mvm          # Show bytecode\n")
		fmt.Fprintf(os.Stderr, "  minivm -tiers -profile prog.mvm  # Tiered run with report\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *trace, *disasm, *showProfile, *tiered, *configPath, *profileDB, *runLabel, *imageOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, trace, disasm, showProfile, tiered bool, configPath, profileDB, runLabel, imageOut string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Optimize:   cfg.OptimizerOptions(),
		Thresholds: cfg.Thresholds(),
		Limits:     cfg.Limits(),
		Trace:      trace,
	}

	if disasm || imageOut != "" {
		module, _, err := pipeline.CompileAndOptimize(string(src), opts)
		if err != nil {
			return err
		}
		if imageOut != "" {
			data, err := bytecode.EncodeModule(module)
			if err != nil {
				return err
			}
			return os.WriteFile(imageOut, data, 0o644)
		}
		fmt.Print(module.Disassemble())
		return nil
	}

	var value bytecode.Value
	var prof *profile.Profile

	if tiered {
		res, err := pipeline.RunTiered(string(src), opts)
		if err != nil {
			return err
		}
		value, prof = res.Value, res.Profile
		if res.Reoptimized {
			fmt.Fprintln(os.Stderr, "(re-optimized with runtime feedback)")
		}
	} else {
		module, _, err := pipeline.CompileAndOptimize(string(src), opts)
		if err != nil {
			return err
		}
		value, prof, err = pipeline.Run(module, opts)
		if err != nil {
			return err
		}
	}

	if !value.IsNil() {
		fmt.Println(value)
	}

	if showProfile {
		fmt.Fprint(os.Stderr, prof.Report())
	}

	if profileDB != "" {
		store, err := profile.OpenStore(profileDB)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(runLabel, prof); err != nil {
			return err
		}
	}

	return nil
}
