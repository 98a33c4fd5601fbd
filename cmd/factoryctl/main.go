// factoryctl builds, inspects and fingerprints object descriptions stored in
// YAML or JSON files.
//
// Commands:
//
//	factoryctl build -f car.yaml               build with the demo classes and dump the object
//	factoryctl graph -f car.yaml --format dot  print the nested description graph
//	factoryctl fingerprint -f car.json         print the content hash of a description
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"

	"github.com/chenyanchen/factory"
	"github.com/chenyanchen/factory/container"
	"github.com/chenyanchen/factory/internal/demo"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return fmt.Errorf("missing command")
	}

	command, rest := args[0], args[1:]
	var (
		file     string
		format   string
		logLevel string
	)
	flagSet := pflag.NewFlagSet("factoryctl "+command, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&file, "file", "f", "", "description file (.yaml, .yml or .json)")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	if command == "graph" {
		flagSet.StringVar(&format, "format", "dot", "graph format: dot or mermaid")
	}

	switch command {
	case "build", "graph", "fingerprint":
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", command)
	}

	if err := flagSet.Parse(rest); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if file == "" {
		return fmt.Errorf("%s: --file is required", command)
	}

	logger, err := newLogger(stderr, logLevel)
	if err != nil {
		return err
	}
	description, err := loadDescription(file)
	if err != nil {
		return err
	}
	logger.Debug("loaded description", "file", file, "type", fmt.Sprintf("%T", description))

	switch command {
	case "build":
		return runBuild(ctx, logger, description, stdout)
	case "graph":
		return runGraph(description, format, stdout)
	default:
		hash, err := factory.Fingerprint(description)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, hash)
		return err
	}
}

func runBuild(ctx context.Context, logger *slog.Logger, description any, stdout io.Writer) error {
	reg := container.NewRegistry()
	if err := demo.Register(reg); err != nil {
		return err
	}
	builder, err := factory.NewBuilder(reg, factory.WithLogger(logger), factory.WithMaxDepth(64))
	if err != nil {
		return err
	}
	object, err := builder.Build(ctx, description)
	if err != nil {
		return err
	}
	logger.Info("built object", "type", fmt.Sprintf("%T", object))

	dumper := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	_, err = io.WriteString(stdout, dumper.Sdump(object))
	return err
}

func runGraph(description any, format string, stdout io.Writer) error {
	graph, err := factory.Inspect(description)
	if err != nil {
		return err
	}
	switch format {
	case "dot":
		_, err = io.WriteString(stdout, graph.DOT())
	case "mermaid":
		_, err = io.WriteString(stdout, graph.Mermaid())
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
	return err
}

func loadDescription(path string) (any, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var description any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		description, err = factory.DecodeYAML(payload)
	case ".json":
		description, err = factory.DecodeJSON(payload)
	default:
		return nil, fmt.Errorf("%s: unsupported file extension, want .yaml, .yml or .json", path)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if description == nil {
		return nil, fmt.Errorf("%s: empty description", path)
	}
	return description, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: factoryctl <command> -f FILE [flags]

Commands:
  build        build the description with the demo classes and dump the object
  graph        print the nested description graph (--format dot|mermaid)
  fingerprint  print the content hash of the description

Flags:
  -f, --file       description file (.yaml, .yml or .json)
      --log-level  debug, info, warn or error (default warn)
`)
}
