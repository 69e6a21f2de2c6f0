package main

import (
	"io"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/dm42/db48x/command/repl"
	"github.com/dm42/db48x/internal/session"
	"github.com/dm42/db48x/util/logger"
)

func main() {
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHeapSize := getopt.IntLong("heap", 'H', session.DefaultHeapSize, "Heap size in bytes")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file io.Writer = io.Discard
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("db48x: can't open log file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		file = f
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelWarn)
	debug := false
	slog.SetDefault(slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, &debug)))

	sess, err := session.NewSize(*optHeapSize, session.DefaultReturnStackCap)
	if err != nil {
		slog.Error("db48x: failed to start session", "error", err)
		os.Exit(1)
	}

	if err := repl.Run(sess); err != nil {
		os.Exit(1)
	}
}
