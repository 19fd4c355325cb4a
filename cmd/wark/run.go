package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wasm-oj/wark/internal/sandbox"
)

type runReport struct {
	Cost   uint64 `json:"cost"`
	Memory uint32 `json:"memory"`
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	memory := fs.Uint("memory", 256, "memory ceiling in MB")
	cost := fs.Uint64("cost", 100_000_000, "cost budget")
	inputPath := fs.String("input", "", "path to stdin file, or - for stdin (default: empty stdin)")
	stderrPath := fs.String("stderr", "", "redirect captured stderr to this file instead of the process's stderr")
	noReport := fs.Bool("no-report", false, "suppress the JSON {cost, memory} report on stderr")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wark run [flags] <module.wasm>")
		return 2
	}

	wasm, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read module: %v\n", err)
		return 1
	}

	stdin, err := readInput(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	result, runErr := sandbox.Run(context.Background(), sandbox.RunRequest{
		Module:       wasm,
		Budget:       *cost,
		MemoryCeilMB: uint32(*memory),
		Stdin:        stdin,
	}, logger)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %s\n", runErr.Error())
		return 1
	}

	os.Stdout.Write(result.Stdout)

	if err := writeStderr(*stderrPath, result.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "write stderr output: %v\n", err)
		return 1
	}

	if !*noReport {
		report := runReport{Cost: result.Cost, Memory: result.MemoryMB}
		enc := json.NewEncoder(os.Stderr)
		_ = enc.Encode(report)
	}

	return 0
}

func readInput(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	default:
		b, err := os.ReadFile(path)
		return string(b), err
	}
}

func writeStderr(path string, data []byte) error {
	if path == "" {
		_, err := os.Stderr.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
