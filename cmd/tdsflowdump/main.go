package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ha1tch/tdsflow/pkg/log"
	"github.com/ha1tch/tdsflow/pkg/version"
	"github.com/ha1tch/tdsflow/tdsflow"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tdsflowdump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		pcapFile    = fs.String("r", "", "Read packets from a pcap/pcapng capture file")
		configFile  = fs.String("c", "", "Configuration file path")
		workers     = fs.Int("workers", 4, "Worker count recorded in the configuration (decoding runs on one goroutine)")
		lockShards  = fs.Int("lock-shards", 64, "Flow lock pool shard count")
		outFormat   = fs.String("format", "json", "Output format: json, text")
		logLevel    = fs.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFormat   = fs.String("log-format", "text", "Log format (text, json)")
		showHelp    = fs.Bool("h", false, "Show help")
		showVersion = fs.Bool("v", false, "Show version")
	)

	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showHelp {
		printUsage(stdout)
		return 0
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.Full())
		return 0
	}
	if *pcapFile == "" {
		fmt.Fprintln(stderr, "error: -r <capture file> is required")
		printUsage(stderr)
		return 2
	}

	cfg := tdsflow.DefaultConfig()
	cfg.Workers = *workers
	cfg.LockShards = *lockShards
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat

	if *configFile != "" {
		loaded, err := tdsflow.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(stderr, "error loading config: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	format := log.FormatText
	if cfg.LogFormat == "json" {
		format = log.FormatJSON
	}
	logger := log.New(log.Config{
		DefaultLevel: level,
		Output:       stderr,
		Format:       format,
	})

	ft := tdsflow.NewFlowTable(cfg.LockShards)
	converters := tdsflow.NewWorkerConverters()
	conv := converters.Get()
	defer converters.Put(conv)

	enc := json.NewEncoder(stdout)
	count := 0
	onEvent := func(ev *tdsflow.SqlEvent) {
		count++
		if *outFormat == "json" {
			enc.Encode(ev)
		} else {
			fmt.Fprintf(stdout, "%s msg=%s query=%v sql=%q err=%s\n",
				ev.FirstTS.Format("15:04:05.000"), ev.MsgType, ev.IsQuery, ev.SQL, ev.DecodeErr)
		}
	}

	logger.System().Info("reading capture", "path", *pcapFile)
	if err := readPcap(*pcapFile, ft, conv, onEvent); err != nil {
		fmt.Fprintf(stderr, "error reading capture: %v\n", err)
		return 1
	}

	logger.System().Info("capture processed", "events", count, "flows", ft.Len())
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `tdsflowdump - decode TDS (SQL Server wire protocol) traffic from a capture file

Usage:
  tdsflowdump -r <capture.pcap> [options]

Options:
  -r <file>                Read packets from a pcap/pcapng capture file (required)
  -c <file>                Configuration file path (JSON)
  --workers <n>            Worker count recorded in the configuration; decoding
                           runs on one goroutine (default: 4)
  --lock-shards <n>        Flow lock pool shard count (default: 64)
  --format <fmt>           Output format: json, text (default: json)
  --log-level <level>      Log level: debug, info, warn, error (default: info)
  --log-format <format>    Log format: text, json (default: text)
  -h                       Show help
  -v                       Show version

Examples:
  tdsflowdump -r capture.pcap
  tdsflowdump -r capture.pcap --format text --log-level debug
`)
}
