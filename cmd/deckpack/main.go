package main

import (
	"context"
	"deckpack/internal"
	"deckpack/internal/di"
	"deckpack/internal/structures"
	"fmt"
	"github.com/spf13/pflag"
	"os"
	"os/signal"
	"syscall"
)

const usage = `Usage: deckpack [serve|export|import] [flags]

  serve    run the HTTP daemon (default)
  export   convert a flashcard JSON file into an .apkg archive
  import   convert an .apkg archive into a flashcard JSON file

Flags:
`

func parseFlags(args []string) (*structures.CliFlags, error) {
	flags := &structures.CliFlags{Command: internal.CommandServe}
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		flags.Command = args[0]
		args = args[1:]
	}

	fs := pflag.NewFlagSet("deckpack", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
	fs.BoolVarP(&flags.DebugMode, "debug", "d", false, "mirror logs to the console")
	fs.StringVarP(&flags.Input, "input", "i", "", "input file for export or import")
	fs.StringVarP(&flags.Output, "output", "o", "", "output file, derived from the input name when empty")
	fs.StringVarP(&flags.DeckName, "deck", "n", "", "deck name, overrides the one in the input file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch flags.Command {
	case internal.CommandServe, internal.CommandExport, internal.CommandImport:
	default:
		fs.Usage()
		return nil, fmt.Errorf("unknown command %q", flags.Command)
	}
	return flags, nil
}

func run() error {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	if flags.Command == internal.CommandServe {
		app, err := di.InitApp(flags)
		if err != nil {
			return err
		}
		return app.Run()
	}

	tool, err := di.InitTool(flags)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return tool.Run(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
