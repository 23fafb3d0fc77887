package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/sakif/course-review/internal/catalog"
	"github.com/sakif/course-review/internal/events"
	"github.com/sakif/course-review/internal/i18n"
	"github.com/sakif/course-review/internal/identity"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/phrase"
	"github.com/sakif/course-review/internal/review"
	"github.com/sakif/course-review/internal/session"
)

var readPasswordFunc = term.ReadPassword // mockable

type commandLine struct {
	out    io.Writer
	client *identity.Client
	rec    *session.Reconciler
	bus    *events.Bus
	local  session.Storage
	texts  *i18n.Loader
	lang   string
	logger *slog.Logger
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	name, args := args[0], args[1:]
	switch name {
	case "register":
		return cli.register(ctx, args)
	case "verify":
		return cli.verify(ctx, args)
	case "login":
		return cli.login(ctx, args)
	case "logout":
		return cli.rec.Logout(ctx)
	case "whoami":
		return cli.whoami(ctx)
	case "courses":
		return cli.courses(ctx, args)
	case "phrases":
		return cli.phrases(args)
	case "review":
		return cli.review(ctx, args)
	case "reviews":
		return cli.reviews(ctx)
	case "delete":
		return cli.deleteReview(ctx, args)
	case "favorite":
		return cli.favorite(ctx, args)
	case "favorites":
		return cli.favorites(ctx)
	default:
		return fmt.Errorf("unknown command %q, run reviewctl -h for the list", name)
	}
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(pwd) == 0 {
		return "", errors.New("a password is required")
	}
	return string(pwd), nil
}

// requireUser returns the signed-in user after reconciling the saved
// session with the server.
func (cli *commandLine) requireUser(ctx context.Context) (*model.AuthUser, error) {
	u := cli.rec.CheckUser(ctx)
	if u == nil {
		return nil, errors.New("not signed in, run reviewctl login first")
	}
	return u, nil
}

// ============================================================================
// Account
// ============================================================================

func (cli *commandLine) register(ctx context.Context, args []string) error {
	fs := cli.flagSet("register")
	email := fs.String("email", "", "student email (@ln.hk or @ln.edu.hk)")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *email == "" || *name == "" {
		fs.Usage()
		return errHelp
	}
	pwd, err := cli.readPassword("Choose a password: ")
	if err != nil {
		return err
	}
	u, err := cli.rec.Register(ctx, *email, pwd, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "signed in as %s <%s>\n", u.Name, u.Email)
	return nil
}

// verify sends a code to a student email, or checks one when -code is set.
func (cli *commandLine) verify(ctx context.Context, args []string) error {
	fs := cli.flagSet("verify")
	email := fs.String("email", "", "student email")
	code := fs.String("code", "", "the six digit code from the email")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *email == "" {
		fs.Usage()
		return errHelp
	}
	if *code == "" {
		if err := cli.client.SendStudentVerificationCode(ctx, *email); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "code sent to %s\n", *email)
		return nil
	}
	if err := cli.client.VerifyStudentCode(ctx, *email, *code); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s verified\n", *email)
	return nil
}

func (cli *commandLine) login(ctx context.Context, args []string) error {
	saved, _ := cli.local.Get(session.KeySavedEmail)

	fs := cli.flagSet("login")
	email := fs.String("email", saved, "account email")
	remember := fs.Bool("remember", false, "stay signed in")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *email == "" {
		fs.Usage()
		return errHelp
	}
	pwd, err := cli.readPassword("Password: ")
	if err != nil {
		return err
	}
	u, err := cli.rec.Login(ctx, *email, pwd, *remember)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "signed in as %s <%s>\n", u.Name, u.Email)
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	u := cli.rec.CheckUser(ctx)
	if u == nil {
		fmt.Fprintln(cli.out, "not signed in")
		return nil
	}
	verified := "unverified"
	if u.EmailVerification {
		verified = "verified"
	}
	fmt.Fprintf(cli.out, "%s <%s> (%s)\n", u.Name, u.Email, verified)
	return nil
}

// ============================================================================
// Catalog
// ============================================================================

func (cli *commandLine) courses(ctx context.Context, args []string) error {
	fs := cli.flagSet("courses")
	search := fs.String("search", "", "match code or title")
	raw := fs.String("query", "", `listing query, e.g. "department=Business&sort=reviews&order=desc&page=2"`)
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	vals, err := url.ParseQuery(*raw)
	if err != nil {
		return fmt.Errorf("invalid -query: %w", err)
	}
	q := catalog.ParseCourseQuery(vals)
	if *search != "" {
		q.Filter.Search = *search
	}
	if q.Lang == "" {
		q.Lang = cli.lang
	}

	page, err := cli.client.ListCourses(ctx, q)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tTITLE\tREVIEWS\tWORKLOAD\tDIFFICULTY\tUSEFULNESS")
	for _, c := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.1f\t%.1f\n",
			c.Code, c.Title(q.Lang), c.Stats.ReviewCount,
			c.Stats.AvgWorkload, c.Stats.AvgDifficulty, c.Stats.AvgUsefulness)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "page %d of %d, %d courses\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func (cli *commandLine) phrases(args []string) error {
	fs := cli.flagSet("phrases")
	target := fs.String("target", string(phrase.TargetCourse), "course or teaching")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	t := phrase.Target(*target)
	if t != phrase.TargetCourse && t != phrase.TargetTeaching {
		return fmt.Errorf("unknown phrase target %q", *target)
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, ph := range phrase.Catalog(t) {
		fmt.Fprintf(tw, "%s\t%s/%s\t%s\n", ph.ID, ph.Sentiment, ph.Category, ph.TextFor(cli.lang))
	}
	return tw.Flush()
}

// ============================================================================
// Reviews
// ============================================================================

// review builds a draft from a YAML file and submits it. With -edit the
// review is loaded first and the file only changes what it sets. With
// -preview nothing is sent: the rendered draft is printed as JSON.
func (cli *commandLine) review(ctx context.Context, args []string) error {
	fs := cli.flagSet("review")
	file := fs.String("file", "", "review draft (YAML)")
	edit := fs.String("edit", "", "id of your review to edit")
	preview := fs.Bool("preview", false, "print the draft instead of submitting it")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *file == "" {
		fs.Usage()
		return errHelp
	}

	user, err := cli.requireUser(ctx)
	if err != nil {
		return err
	}
	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()
	df, err := parseDraft(f)
	if err != nil {
		return err
	}

	form := review.NewForm(cli.client, cli.bus, cli.logger)
	if *edit != "" {
		if err := form.LoadForEdit(ctx, *edit, *user); err != nil {
			return err
		}
	}
	if err := df.apply(ctx, form, *edit != ""); err != nil {
		return err
	}

	if *preview {
		d := form.Draft()
		var ve *review.ValidationError
		if err := review.Validate(&d); errors.As(err, &ve) {
			fmt.Fprintf(cli.out, "not ready to submit (%s): %s\n", ve.Field, cli.texts.T(cli.lang, ve.MessageKey))
		}
		p, err := review.NewPreview(&d)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	saved, err := form.Submit(ctx, *user)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "review %s saved\n", saved.ID)
	return nil
}

func (cli *commandLine) reviews(ctx context.Context) error {
	if _, err := cli.requireUser(ctx); err != nil {
		return err
	}
	list, err := cli.client.GetUserReviews(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOURSE\tTERM\tGRADE\tSUBMITTED")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.CourseCode, r.TermCode, r.FinalGrade, r.SubmittedAt)
	}
	return tw.Flush()
}

func (cli *commandLine) deleteReview(ctx context.Context, args []string) error {
	fs := cli.flagSet("delete")
	id := fs.String("id", "", "review id")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *id == "" {
		fs.Usage()
		return errHelp
	}
	user, err := cli.requireUser(ctx)
	if err != nil {
		return err
	}
	if err := cli.client.DeleteReview(ctx, *id); err != nil {
		return err
	}
	cli.bus.Publish(events.Event{Topic: events.UserStatsUpdated, UserID: user.ID})
	fmt.Fprintf(cli.out, "review %s deleted\n", *id)
	return nil
}

// ============================================================================
// Favorites
// ============================================================================

func (cli *commandLine) favorite(ctx context.Context, args []string) error {
	fs := cli.flagSet("favorite")
	kind := fs.String("type", string(model.FavoriteCourse), "course or instructor")
	key := fs.String("key", "", "course code or instructor name")
	remove := fs.Bool("remove", false, "remove instead of add")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	k := model.FavoriteKind(*kind)
	if !k.Valid() || *key == "" {
		fs.Usage()
		return errHelp
	}
	if _, err := cli.requireUser(ctx); err != nil {
		return err
	}
	if *remove {
		return cli.client.RemoveFavorite(ctx, k, *key)
	}
	return cli.client.AddFavorite(ctx, k, *key)
}

func (cli *commandLine) favorites(ctx context.Context) error {
	if _, err := cli.requireUser(ctx); err != nil {
		return err
	}
	list, err := cli.client.ListFavorites(ctx)
	if err != nil {
		return err
	}
	for _, f := range list {
		fmt.Fprintf(cli.out, "%s\t%s\n", f.Kind, f.Key)
	}
	return nil
}
