// Command reviewctl is a terminal client for the course review server. It
// signs in, browses the catalog and writes reviews the way the web client
// does: the session reconciler decides who is signed in and the review form
// validates a draft before it is submitted.
//
//	reviewctl login -email chan@ln.hk -remember
//	reviewctl courses -query "department=Business&sort=reviews&order=desc"
//	reviewctl review -file bus1001.yaml -preview
//	reviewctl review -file bus1001.yaml
//
// Settings come from flags or REVIEWCTL_SERVER, REVIEWCTL_LANG and
// REVIEWCTL_PROFILE. The session and local storage are kept in a profile file
// between runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/sakif/course-review/internal/events"
	"github.com/sakif/course-review/internal/i18n"
	"github.com/sakif/course-review/internal/identity"
	"github.com/sakif/course-review/internal/session"
)

var errHelp = errors.New("help provided")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintln(os.Stderr, "reviewctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out, logOut io.Writer) error {
	v := viper.New()
	v.SetEnvPrefix("REVIEWCTL")
	v.AutomaticEnv()
	v.SetDefault("SERVER", "http://localhost:8080")
	v.SetDefault("LANG", i18n.DefaultLanguage)
	v.SetDefault("PROFILE", defaultProfilePath())

	global := flag.NewFlagSet("reviewctl", flag.ContinueOnError)
	global.SetOutput(out)
	server := global.String("server", v.GetString("SERVER"), "API base URL")
	profilePath := global.String("profile", v.GetString("PROFILE"), "file that keeps the session between runs")
	langFlag := global.String("lang", v.GetString("LANG"), "language: en, zh-TW or zh-CN")
	verbose := global.Bool("v", false, "log API calls")
	global.Usage = func() { printUsage(out, global) }
	if err := global.Parse(args); err != nil {
		return errHelp
	}
	if global.NArg() == 0 {
		global.Usage()
		return errHelp
	}
	lang, ok := i18n.Canonical(*langFlag)
	if !ok {
		return fmt.Errorf("unsupported language %q", *langFlag)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	prof, err := loadProfile(*profilePath)
	if err != nil {
		return err
	}
	prof.forServer(*server)

	client, err := identity.New(*server, logger)
	if err != nil {
		return err
	}
	client.RestoreSession(prof.Session)

	local := session.NewMemoryStorageFrom(prof.Local)
	tab := session.NewMemoryStorageFrom(prof.Tab)
	bus := events.NewBus()
	rec := session.NewReconciler(client, local, tab, bus, logger, session.Options{})
	defer rec.Close()

	// Notices are printed in the chosen language. Without the dictionary
	// the message keys are printed instead.
	texts := i18n.NewLoader(client.GetTranslations, logger)
	if _, err := texts.Load(ctx, lang); err != nil {
		logger.Debug("translations unavailable", slog.String("lang", lang), slog.String("error", err.Error()))
	}
	bus.Subscribe(events.Notice, func(e events.Event) {
		fmt.Fprintf(out, "[%s] %s\n", e.Level, texts.T(lang, e.MessageKey))
	})

	cli := &commandLine{
		out:    out,
		client: client,
		rec:    rec,
		bus:    bus,
		local:  local,
		texts:  texts,
		lang:   lang,
		logger: logger,
	}
	cmdErr := cli.run(ctx, global.Args())

	prof.Session = client.SessionToken()
	prof.Local = local.Snapshot()
	prof.Tab = tab.Snapshot()
	if err := prof.save(*profilePath); err != nil && cmdErr == nil {
		return err
	}
	return cmdErr
}

func printUsage(out io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(out, "Usage: reviewctl [flags] COMMAND [command flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  register   -email EMAIL -name NAME      create a student account (password prompted)")
	fmt.Fprintln(out, "  verify     -email EMAIL [-code CODE]    send or check a student email code")
	fmt.Fprintln(out, "  login      -email EMAIL [-remember]     sign in (password prompted)")
	fmt.Fprintln(out, "  logout                                  sign out")
	fmt.Fprintln(out, "  whoami                                  show the signed-in user")
	fmt.Fprintln(out, "  courses    [-search TEXT] [-query QS]   list courses with review statistics")
	fmt.Fprintln(out, "  phrases    [-target course|teaching]    list the common phrases")
	fmt.Fprintln(out, "  review     -file FILE [-edit ID] [-preview]  write or edit a review")
	fmt.Fprintln(out, "  reviews                                 list your reviews")
	fmt.Fprintln(out, "  delete     -id ID                       delete one of your reviews")
	fmt.Fprintln(out, "  favorite   -type course|instructor -key KEY [-remove]")
	fmt.Fprintln(out, "  favorites                               list your favorites")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	global.PrintDefaults()
}
