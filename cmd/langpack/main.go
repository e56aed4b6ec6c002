package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/langpack/assets"
	"github.com/pitabwire/langpack/config"
	"github.com/pitabwire/langpack/localization"
	"github.com/pitabwire/langpack/pack"
	"github.com/pitabwire/langpack/telemetry"
	"github.com/pitabwire/langpack/version"
)

const (
	minArgsCommand = 2
	loadTimeout    = time.Minute
)

func main() {
	if len(os.Args) < minArgsCommand {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	exitOnErr(err)

	ctx, shutdown, err := setup(ctx, &cfg)
	exitOnErr(err)

	err = run(ctx, &cfg, os.Args[1], os.Args[2:], os.Stdout)
	shutdown()
	exitOnErr(err)
}

func run(ctx context.Context, cfg *config.ConfigurationDefault, command string, args []string, out io.Writer) error {
	switch command {
	case "build":
		return cmdBuild(ctx, cfg, args)
	case "inspect":
		return cmdInspect(ctx, cfg, args, out)
	case "version":
		_, err := fmt.Fprintln(out, "langpack", version.String(), version.Commit, version.Date)
		return err
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command: %q", command)
	}
}

// setup installs the logger and telemetry described by cfg.
func setup(ctx context.Context, cfg *config.ConfigurationDefault) (context.Context, func(), error) {
	tm := telemetry.NewManager(ctx, cfg,
		telemetry.WithServiceVersion(version.String()),
		telemetry.WithMetricViews("langpack/localization"),
	)
	if err := tm.Init(ctx); err != nil {
		return ctx, nil, err
	}

	var opts []util.Option
	if level, err := util.ParseLevel(cfg.LoggingLevel()); err == nil {
		opts = append(opts, util.WithLogLevel(level))
	}
	opts = append(opts,
		util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
		util.WithLogNoColor(!cfg.LoggingColored()),
	)
	if cfg.LoggingShowStackTrace() {
		opts = append(opts, util.WithLogStackTrace())
	}
	if handler := tm.LogHandler(); handler != nil {
		opts = append(opts, util.WithLogHandler(handler))
	}

	log := util.NewLogger(ctx, opts...)
	ctx = util.ContextWithLogger(ctx, log)

	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.GetDisposeTimeout())
		defer cancel()
		if err := tm.Shutdown(sctx); err != nil {
			log.WithError(err).Warn("could not flush telemetry")
		}
	}
	return ctx, shutdown, nil
}

func usage(out io.Writer) {
	_, _ = fmt.Fprintln(out, "langpack <command> [args]")
	_, _ = fmt.Fprintln(out, "")
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  build <source.toml|source.yaml> [--out URL]")
	_, _ = fmt.Fprintln(out, "  inspect [--assets URL] [--language TYPE]")
	_, _ = fmt.Fprintln(out, "  version")
}

// cmdBuild compiles a source file into a meta file plus one pack per language.
func cmdBuild(ctx context.Context, cfg *config.ConfigurationDefault, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	outURL := fs.String("out", cfg.GetAssetsURL(), "bucket url the packs are written to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("source file is required")
	}

	src, err := pack.LoadSource(fs.Arg(0))
	if err != nil {
		return err
	}

	meta, texts, err := pack.Build(ctx, src)
	if err != nil {
		return err
	}

	bucket, err := assets.OpenBucket(ctx, *outURL)
	if err != nil {
		return err
	}
	defer util.CloseAndLogOnError(ctx, bucket, "could not close output bucket")

	// meta goes last so readers never see a meta naming packs that are not written yet
	for _, language := range meta.Languages {
		err = bucket.Write(ctx, cfg.GetLanguagePath(language.Type), func(w io.Writer) error {
			return pack.WriteTexts(w, texts[language.Type])
		})
		if err != nil {
			return err
		}
	}

	err = bucket.Write(ctx, cfg.GetMetaPath(), func(w io.Writer) error {
		return pack.WriteMeta(w, meta)
	})
	if err != nil {
		return err
	}

	util.Log(ctx).
		WithField("languages", len(meta.Languages)).
		WithField("texts", len(meta.TextNames)).
		WithField("out", *outURL).
		Info("language packs written")
	return nil
}

// cmdInspect loads packs through a manager and prints what it sees.
func cmdInspect(ctx context.Context, cfg *config.ConfigurationDefault, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	assetsURL := fs.String("assets", cfg.GetAssetsURL(), "bucket url the packs are read from")
	languageType := fs.String("language", "", "language whose texts are printed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	inspectCfg := *cfg
	inspectCfg.LocalizationAssetsURL = *assetsURL

	m, err := localization.NewManagerFromConfig(ctx, &inspectCfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(context.WithoutCancel(ctx)); closeErr != nil {
			util.Log(ctx).WithError(closeErr).Warn("could not close localization manager")
		}
	}()

	var failure error
	m.OnTaskCompleted(func(e localization.TaskCompleted) {
		if e.Outcome == localization.Failure {
			failure = errors.Join(failure, fmt.Errorf("load %s %q: %s", e.Kind, e.Detail, e.Error))
		}
	})

	m.LoadMetaAsync(ctx)
	if *languageType != "" {
		m.LoadLanguageAsync(ctx, *languageType)
	}

	wctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err = m.Wait(wctx); err != nil {
		return err
	}
	if failure != nil {
		return failure
	}

	return printState(out, m)
}

func printState(out io.Writer, m *localization.Manager) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "INDEX\tTYPE\tNAME")
	for i := range m.LanguageCount() {
		languageType, _ := m.GetLanguageType(i)
		name, _ := m.GetLanguageAttribute(i, localization.LanguageNameAttribute)
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i, languageType, name)
	}

	if m.IsLanguageLoaded() {
		_, _ = fmt.Fprintf(tw, "\nTEXTS (%s)\t\t\n", m.LanguageType())
		for _, name := range m.TextNames() {
			text, _ := m.GetText(name)
			_, _ = fmt.Fprintf(tw, "%s\t%q\t\n", name, text)
		}
		_, _ = fmt.Fprintf(tw, "\nCHARACTERS\t%q\t\n", m.UsedCharacters())
	}

	return tw.Flush()
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
