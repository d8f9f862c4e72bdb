package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/goliatone/go-formflow"
	"github.com/goliatone/go-formflow/components/postalcodes"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/renderers/tui"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/submit"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

type options struct {
	form     string
	file     string
	locale   string
	endpoint string
	lookup   string
	plain    bool
	list     bool
	logLevel string
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, tui.ErrAborted):
		fmt.Fprintln(os.Stderr, "aborted")
		os.Exit(130)
	default:
		log.Fatalf("formflow: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("formflow", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.form, "form", "f", "client", "built-in definition id")
	flagSet.StringVar(&opts.file, "file", "", "definition file (YAML, JSON or JSONC); overrides --form")
	flagSet.StringVar(&opts.locale, "locale", "", "message locale (default: the definition locale)")
	flagSet.StringVar(&opts.endpoint, "endpoint", "", "POST the payload to this URL instead of printing it")
	flagSet.StringVar(&opts.lookup, "lookup-url", "", "postal code service URL (default: the embedded directory)")
	flagSet.BoolVar(&opts.plain, "plain", false, "disable colours")
	flagSet.BoolVar(&opts.list, "list", false, "list built-in definitions and exit")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: formflow [flags]\n\nFill a form definition interactively and submit the payload.\n\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	if opts.list {
		store, err := formflow.Builtins()
		if err != nil {
			return err
		}
		for _, id := range store.IDs() {
			def, _ := store.Definition(id)
			fmt.Fprintf(stdout, "%-16s %s\n", id, def.Title)
		}
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(opts.logLevel)}))

	def, err := loadDefinition(opts)
	if err != nil {
		return err
	}
	service, err := newService(opts.endpoint, def, stdout)
	if err != nil {
		return err
	}
	lookup, err := newLookup(opts.lookup)
	if err != nil {
		return err
	}

	eng, err := formflow.New(def,
		formflow.WithLookup("postal", lookup),
		formflow.WithLocale(opts.locale),
		formflow.WithSubmitter(service),
		formflow.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	theme := tui.DefaultTheme()
	if opts.plain {
		theme = tui.PlainTheme()
	}
	session, err := tui.New(eng,
		tui.WithTheme(theme),
		tui.WithLogger(logger),
		tui.WithPromptDriver(tui.NewSurveyDriver(os.Stderr)),
		tui.WithStepBack(),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return session.Run(ctx)
}

func loadDefinition(opts options) (schema.Definition, error) {
	if opts.file == "" {
		return formflow.Builtin(opts.form)
	}
	raw, err := os.ReadFile(opts.file)
	if err != nil {
		return schema.Definition{}, fmt.Errorf("read definition: %w", err)
	}
	return schema.Parse(raw, opts.file)
}

func newService(endpoint string, def schema.Definition, stdout io.Writer) (wizard.Service, error) {
	if strings.TrimSpace(endpoint) == "" {
		return submit.WriterSink{W: stdout}, nil
	}
	return submit.NewHTTPClient(endpoint, submit.WithForm(def.FormModel()))
}

// addressFields maps lookup results onto the client form.
var addressFields = postalcodes.FieldMap{
	Street:   "ds_endereco",
	District: "ds_bairro",
	City:     "ds_cidade",
	State:    "sg_uf",
}

func newLookup(endpoint string) (enrich.Lookup, error) {
	if strings.TrimSpace(endpoint) != "" {
		return postalcodes.NewClient(endpoint, postalcodes.WithFieldMap(addressFields))
	}
	dir, err := postalcodes.DefaultDirectory()
	if err != nil {
		return nil, err
	}
	return postalcodes.DirectoryLookup{Directory: dir, Fields: addressFields}, nil
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelWarn
	}
	return level
}
