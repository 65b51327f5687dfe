// Package main provides the recoread command-line client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/client"
	"github.com/recoread/recoread-client/internal/config"
	"github.com/recoread/recoread-client/internal/di"
	"github.com/recoread/recoread-client/internal/di/providers"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/logger"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage reports a malformed command line. The command has already
// printed its usage.
var errUsage = errors.New("usage")

// env is what every command runs with.
type env struct {
	injector *do.RootScope
	cfg      *config.Config
	log      *logger.Logger
	client   *client.Client
	out      io.Writer
	in       io.Reader
}

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"register":  {"register -username U -email E [-password P] [-name N]", "Create an account and sign in", runRegister},
	"login":     {"login -user U [-password P]", "Sign in", runLogin},
	"logout":    {"logout", "Forget the stored credential", runLogout},
	"whoami":    {"whoami", "Show the signed-in user", runWhoami},
	"books":     {"books [-search S] [-tag T] [-page N] [-size N] [-sort F,dir]", "List library books", runBooks},
	"count":     {"count", "Count library books", runCount},
	"tags":      {"tags", "List library tags", runTags},
	"show":      {"show REF", "Show a book and its reading state", runShow},
	"add":       {"add -title T [-author A] [-pages N] [-tags a,b] ...", "Add a book manually", runAdd},
	"import":    {"import [-pick N] QUERY", "Add a book from a catalog search", runImport},
	"delete":    {"delete -yes REF", "Delete a book", runDelete},
	"log":       {"log [-page N | -percent N | -finished] [-note T] [-minutes N] REF", "Record reading progress", runLog},
	"events":    {"events REF", "List a book's reading events", runEvents},
	"history":   {"history [-limit N]", "Show recent reading activity", runHistory},
	"summarize": {"summarize [-text T] REF", "Generate a summary (text from -text or stdin)", runSummarize},
	"summaries": {"summaries REF", "List a book's summaries", runSummaries},
	"recommend": {"recommend [-limit N] REF", "Show scored recommendations", runRecommend},
	"search":    {"search QUERY", "Search the external catalog", runSearch},
	"find":      {"find [-tag T] [-limit N] [-sort S] [QUERY]", "Search the local library index", runFind},
	"sync":      {"sync", "Rebuild the local library index from the backend", runSync},
	"serve":     {"serve", "Run the local companion server", runServe},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, rest, err := config.Load(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		printUsage(stderr)
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if len(rest) == 0 || rest[0] == "help" {
		printUsage(stderr)
		if len(rest) == 0 {
			return exitUsage
		}
		return exitOK
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		printUsage(stderr)
		return exitUsage
	}

	injector := di.NewContainer(cfg)
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintln(stderr, "startup failed:", err)
		return exitError
	}
	log := do.MustInvoke[*logger.Logger](injector)
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			log.Debug("shutdown", "error", err)
		}
	}()

	e := &env{
		injector: injector,
		cfg:      cfg,
		log:      log,
		client:   do.MustInvoke[*providers.ClientHandle](injector).Client,
		out:      stdout,
		in:       stdin,
	}

	err = cmd.run(ctx, e, rest[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, "usage: recoread", cmd.usage)
		return exitUsage
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, domainerrors.ErrUnauthorized) && !signsIn(rest[0]):
		fmt.Fprintln(stderr, domainerrors.Message(err))
		fmt.Fprintln(stderr, "Sign in with: recoread login -user NAME")
		return exitError
	default:
		log.Debug("command failed", "command", rest[0], "error", err)
		fmt.Fprintln(stderr, "error:", domainerrors.Message(err))
		return exitError
	}
}

// signsIn reports whether name is a command that starts a session itself.
func signsIn(name string) bool {
	return name == "login" || name == "register"
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: recoread [global flags] COMMAND [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "global flags (before COMMAND): -api, -data-dir, -cache, -credentials, -log-level, -port")
	fmt.Fprintln(w, "books are addressed by ID or by number: no:12 or #12")
}

// newFlags creates a subcommand flag set whose errors go to the caller.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse parses args, allowing flags after positional arguments, and maps
// flag errors to errUsage. Positional arguments are left in positional.
func parse(fs *flag.FlagSet, args []string) error {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return errUsage
			}
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		if args[0] == "--" {
			positional = append(positional, args[1:]...)
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	// Re-parse the positional arguments alone so fs.Args reports them.
	return fs.Parse(append([]string{"--"}, positional...))
}

// oneArg parses args and returns the single positional argument.
func oneArg(fs *flag.FlagSet, args []string) (string, error) {
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", errUsage
	}
	return fs.Arg(0), nil
}

// restAsText parses args and joins the positional arguments.
func restAsText(fs *flag.FlagSet, args []string) (string, error) {
	if err := parse(fs, args); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(fs.Args(), " ")), nil
}
