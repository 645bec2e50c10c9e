package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hanpama/structgraph/internal/assembly"
	"github.com/hanpama/structgraph/internal/bookstore"
	"github.com/hanpama/structgraph/internal/config"
	"github.com/hanpama/structgraph/internal/eventbus"
	"github.com/hanpama/structgraph/internal/httpserver"
	"github.com/hanpama/structgraph/internal/logging"
	"github.com/hanpama/structgraph/internal/meta"
	"github.com/hanpama/structgraph/internal/metrics"
	"github.com/hanpama/structgraph/internal/server"
	"github.com/hanpama/structgraph/internal/telemetry"
)

const serviceName = "structgraph"

const rootUsage = `structgraph - GraphQL input types from type metadata

USAGE:
  structgraph <command> [flags]

COMMANDS:
  serve            Run the bookstore GraphQL service
  compile-sdl      Generate input types, merge them into a base schema and print it
  help             Show help for any command

Flag defaults are read from STRUCTGRAPH_* environment variables; .env and
.env.local are loaded when present.
`

const serveUsage = `serve FLAGS:
  -addr <addr>               HTTP listen address (env STRUCTGRAPH_ADDR, default :8080)
  -pretty                    Pretty-print JSON responses (env STRUCTGRAPH_PRETTY)
  -timeout <duration>        Per-request timeout (env STRUCTGRAPH_TIMEOUT, default 10s)
  -max-body <bytes>          Request body limit, 0 for none (env STRUCTGRAPH_MAX_BODY, default 1048576)
  -max-batch <n>             Operations per batch, 0 for no limit (env STRUCTGRAPH_MAX_BATCH)
  -cors <origin>             Allowed CORS origin. Repeatable (env STRUCTGRAPH_CORS, comma separated)
  -otel.endpoint <addr>      OTLP/gRPC collector endpoint (env STRUCTGRAPH_OTEL_ENDPOINT)
  -otel.service <name>       OpenTelemetry service name (env STRUCTGRAPH_OTEL_SERVICE, default structgraph)
`

const compileSDLUsage = `compile-sdl FLAGS:
  -base <file>    Base SDL document (env STRUCTGRAPH_BASE)
  -types <file>   YAML type table to generate input types from (env STRUCTGRAPH_TYPES)
  -out <file>     Write the schema to file (default: stdout)
  Without -base and -types the bookstore schema is compiled. -types needs -base.
  (Validation always runs; exits non-zero on errors)
`

func main() {
	// env files first so LOG_LEVEL can come from them
	loaded := config.LoadEnv(nil)
	logger := logging.New(serviceName)
	if len(loaded) > 0 {
		logger.WithField("files", loaded).Debug("loaded env files")
	}
	if err := run(os.Args[1:], os.Stdout, os.Stderr, logger); err != nil {
		logger.WithError(err).Fatal("structgraph failed")
	}
}

func run(args []string, stdout, stderr io.Writer, logger logging.Logger) error {
	global := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer))
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd, cmdArgs := remaining[0], remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs, stderr, logger)
	case "compile-sdl":
		return cmdCompileSDL(cmdArgs, stdout, stderr, logger)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "compile-sdl":
		fmt.Fprint(stdout, compileSDLUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func env(name string) string { return config.Prefix + name }

type serveFlags struct {
	addr         string
	pretty       bool
	timeout      time.Duration
	maxBody      int64
	maxBatch     int
	cors         stringListFlag
	otelEndpoint string
	otelService  string
}

func parseServeFlags(args []string) (serveFlags, error) {
	f := serveFlags{
		addr:         config.GetEnv(env("ADDR"), ":8080"),
		pretty:       config.GetEnvBool(env("PRETTY"), false),
		timeout:      config.GetEnvDuration(env("TIMEOUT"), 10*time.Second),
		maxBody:      config.GetEnvInt64(env("MAX_BODY"), 1<<20),
		maxBatch:     config.GetEnvInt(env("MAX_BATCH"), 0),
		otelEndpoint: config.GetEnv(env("OTEL_ENDPOINT"), ""),
		otelService:  config.GetEnv(env("OTEL_SERVICE"), serviceName),
	}
	envCORS := config.GetEnvList(env("CORS"), nil)

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&f.addr, "addr", f.addr, "HTTP listen address")
	fs.BoolVar(&f.pretty, "pretty", f.pretty, "Pretty-print JSON responses")
	fs.DurationVar(&f.timeout, "timeout", f.timeout, "Per-request timeout")
	fs.Int64Var(&f.maxBody, "max-body", f.maxBody, "Request body limit")
	fs.IntVar(&f.maxBatch, "max-batch", f.maxBatch, "Operations per batch")
	fs.Var(&f.cors, "cors", "Allowed CORS origin")
	fs.StringVar(&f.otelEndpoint, "otel.endpoint", f.otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&f.otelService, "otel.service", f.otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if len(f.cors) == 0 {
		f.cors = envCORS
	}
	return f, nil
}

func (f serveFlags) handlerOptions() []server.Option {
	var opts []server.Option
	if f.pretty {
		opts = append(opts, server.WithPretty())
	}
	if f.timeout > 0 {
		opts = append(opts, server.WithTimeout(f.timeout))
	}
	if f.maxBody > 0 {
		opts = append(opts, server.WithMaxBodyBytes(f.maxBody))
	}
	if f.maxBatch > 0 {
		opts = append(opts, server.WithMaxBatch(f.maxBatch))
	}
	if len(f.cors) > 0 {
		opts = append(opts, server.WithCORS(f.cors...))
	}
	return opts
}

func cmdServe(args []string, stderr io.Writer, logger logging.Logger) error {
	f, err := parseServeFlags(args)
	if err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventbus.Use(eventbus.New())
	shutdown, err := telemetry.Setup(ctx, f.otelEndpoint, f.otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	collector := metrics.New(serviceName)
	defer collector.Attach()()

	svc, err := bookstore.New(ctx, nil, logger)
	if err != nil {
		return err
	}

	router := httpserver.NewRouter(logger, serviceName, httpserver.Routes{
		SDL:     svc.Assembly.SDL,
		GraphQL: server.New(svc.Schema, f.handlerOptions()...),
		Metrics: collector,
	})
	cfg := httpserver.DefaultConfig(serviceName)
	cfg.Addr = f.addr
	return httpserver.Start(ctx, cfg, router, logger)
}

func cmdCompileSDL(args []string, stdout, stderr io.Writer, logger logging.Logger) error {
	baseFile := config.GetEnv(env("BASE"), "")
	typesFile := config.GetEnv(env("TYPES"), "")
	outFile := ""
	fs := flag.NewFlagSet("compile-sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&baseFile, "base", baseFile, "Base SDL document")
	fs.StringVar(&typesFile, "types", typesFile, "YAML type table")
	fs.StringVar(&outFile, "out", outFile, "Write compiled SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, compileSDLUsage)
		return err
	}

	sdl, err := compileSDL(baseFile, typesFile, logger)
	if err != nil {
		return err
	}
	if outFile == "" {
		_, err := io.WriteString(stdout, sdl)
		return err
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func compileSDL(baseFile, typesFile string, logger logging.Logger) (string, error) {
	ctx := context.Background()
	if baseFile == "" && typesFile == "" {
		svc, err := bookstore.New(ctx, nil, logger)
		if err != nil {
			return "", err
		}
		return svc.Assembly.SDL, nil
	}
	if baseFile == "" {
		return "", errors.New("-types needs -base")
	}

	base, err := os.ReadFile(baseFile)
	if err != nil {
		return "", fmt.Errorf("read base schema: %w", err)
	}
	opts := []assembly.Option{assembly.WithBaseName(baseFile), assembly.WithLogger(logger)}
	if typesFile != "" {
		tbl, err := meta.LoadTable(typesFile)
		if err != nil {
			return "", err
		}
		opts = append(opts, assembly.WithTable(tbl))
	}
	res, err := assembly.Assemble(ctx, string(base), opts...)
	if err != nil {
		return "", err
	}
	return res.SDL, nil
}
