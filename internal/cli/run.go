package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/txrepl/internal/config"
	"github.com/roach88/txrepl/internal/session"
	"github.com/roach88/txrepl/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config       string
	IncludePaths []string
	Strict       bool
	Database     string
	IncludePCH   []string
	NativeString string

	// IDGenerator overrides the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator session.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Start an interactive session",
		Long: `Start a session reading inputs from stdin, or from the given files in order.

Each line is a C++ fragment or a dot command (.L, .I, .x, .undo,
.storeState, .compareState, .q). A prompt is shown only when stdin is a
terminal. Flags override the values from --config.

Exit codes:
  0 - .q or end of input
  2 - strict mode escalated a condition, or the session could not start

Examples:
  txrepl run
  txrepl run -I ./include --strict script.txt
  txrepl run --config txrepl.cue --db ./journal.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to a CUE configuration file")
	cmd.Flags().StringArrayVarP(&opts.IncludePaths, "include", "I", nil, "add an include path (repeatable)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "make missing files and load failures fatal")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the session to this SQLite database")
	cmd.Flags().StringArrayVar(&opts.IncludePCH, "include-pch", nil, "include a precompiled artifact before the first input (repeatable)")
	cmd.Flags().StringVar(&opts.NativeString, "native-string", "", "native string representation (narrow|wide|utf16|utf32)")

	return cmd
}

// resolveConfig loads the configuration file, if any, and applies the flags
// the user set on top of it.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("strict") {
		cfg.Strict = opts.Strict
	}
	if flags.Changed("include") {
		cfg.IncludePaths = append(cfg.IncludePaths, opts.IncludePaths...)
	}
	if flags.Changed("db") {
		cfg.Journal = opts.Database
	}
	if flags.Changed("include-pch") {
		cfg.PCH = append(cfg.PCH, opts.IncludePCH...)
	}
	if flags.Changed("native-string") {
		cfg.NativeString = opts.NativeString
	}
	if _, err := cfg.NativeEncoding(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runSession(opts *RunOptions, files []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	native, _ := cfg.NativeEncoding()

	in, interactive, closeInput, err := openInput(cmd.InOrStdin(), files)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open input", err)
	}
	defer closeInput()

	ids := opts.IDGenerator
	if ids == nil {
		ids = session.UUIDv7Generator{}
	}
	id := ids.Generate()

	sessOpts := []session.Option{
		session.WithIDGenerator(session.NewFixedGenerator(id)),
		session.WithStrict(cfg.Strict),
		session.WithNativeString(native),
		session.WithIncludePaths(cfg.IncludePaths...),
		session.WithLibraryPaths(cfg.LibraryPaths...),
		session.WithPCHRoots(cfg.PCHRoots...),
		session.WithStyle(interactive && isTerminal(out)),
	}

	if cfg.Journal != "" {
		slog.Debug("opening journal", "path", cfg.Journal)
		st, err := store.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		j, err := st.BeginSession(ctx, store.SessionRecord{
			ID:           id,
			Strict:       cfg.Strict,
			NativeString: native.String(),
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start journal", err)
		}
		sessOpts = append(sessOpts, session.WithJournal(j))
	}

	sess := session.New(sessOpts...)
	slog.Info("session started", "id", sess.ID(), "interactive", interactive, "journal", cfg.Journal)

	for _, pch := range cfg.PCH {
		o, err := sess.IncludePCH(ctx, pch)
		io.WriteString(out, sess.Render(o))
		if err != nil {
			return sessionExit(err)
		}
	}

	prompt := ""
	if interactive {
		prompt = cfg.Prompt
	}
	if err := sess.Run(ctx, in, out, prompt); err != nil {
		return sessionExit(err)
	}
	if interactive {
		fmt.Fprintln(out)
	}
	slog.Info("session ended", "id", sess.ID(), "live", sess.Log().Len())
	return nil
}

// sessionExit maps an error that stopped the session to an exit code.
func sessionExit(err error) error {
	if session.IsFatal(err) {
		return WrapExitError(ExitCommandError, "fatal", err)
	}
	return WrapExitError(ExitFailure, "session error", err)
}

// openInput returns the session input: the named files concatenated in
// order, or stdin. Only a terminal stdin is interactive.
func openInput(stdin io.Reader, files []string) (io.Reader, bool, func(), error) {
	if len(files) == 0 {
		return stdin, isTerminal(stdin), func() {}, nil
	}

	var readers []io.Reader
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			closeAll()
			return nil, false, nil, err
		}
		opened = append(opened, f)
		// A file without a trailing newline must not join the next file's
		// first line.
		readers = append(readers, f, strings.NewReader("\n"))
	}
	return io.MultiReader(readers...), false, closeAll, nil
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
