package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txrepl/internal/session"
	"github.com/roach88/txrepl/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional; defaults to the latest session

	// Options are appended to the replayed session's options (for testing).
	Options []session.Option
}

// ReplayReport is the result of replaying one journaled session.
type ReplayReport struct {
	SessionID string          `json:"session_id"`
	Replayed  int             `json:"replayed"`
	Failures  []ReplayFailure `json:"failures"`
	Expected  string          `json:"expected_digest"`
	Actual    string          `json:"actual_digest"`
	Match     bool            `json:"match"`
}

// ReplayFailure is a journaled input that failed on replay.
type ReplayFailure struct {
	Tx    int64  `json:"tx"`
	Error string `json:"error"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journaled session and verify its directory",
		Long: `Re-run the live inputs of a journaled session in a fresh session and
compare the resulting visible symbol directory with the journaled one.

Exit codes:
  0 - Replay reproduced the journaled directory
  1 - Replay diverged (an input failed or the digests differ)
  2 - Command error (database not found, unknown session, etc.)

Examples:
  txrepl replay --db ./journal.db
  txrepl replay --db ./journal.db --session 0190a1b2-...
  txrepl replay --db ./journal.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to replay (default: latest)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := resolveSession(ctx, st, opts.SessionID)
	if err != nil {
		return err
	}
	formatter.VerboseLog("replaying session %s", id)

	result, err := st.Replay(ctx, id, opts.Options...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay session", err)
	}

	report := ReplayReport{
		SessionID: result.SessionID,
		Replayed:  result.Replayed,
		Failures:  []ReplayFailure{},
		Expected:  result.Expected,
		Actual:    result.Actual,
		Match:     result.Match(),
	}
	for _, f := range result.Failed {
		report.Failures = append(report.Failures, ReplayFailure{Tx: int64(f.Tx), Error: f.Err.Error()})
	}

	if err := formatter.Success(report, formatReplayText(report)); err != nil {
		return err
	}
	if !report.Match {
		return NewExitError(ExitFailure, "replay diverged from the journal")
	}
	return nil
}

func formatReplayText(r ReplayReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: %d inputs replayed\n", r.SessionID, r.Replayed)
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  tx %d failed: %s\n", f.Tx, f.Error)
	}
	if r.Match {
		b.WriteString("✓ directory reproduced\n")
	} else {
		fmt.Fprintf(&b, "✗ directory diverged\n  expected %s\n  actual   %s\n", r.Expected, r.Actual)
	}
	return b.String()
}

// openJournal opens an existing journal database.
func openJournal(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	if path != ":memory:" {
		if err := fileExists(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "journal not found", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

// resolveSession returns id, or the latest journaled session when id is
// empty.
func resolveSession(ctx context.Context, st *store.Store, id string) (string, error) {
	var (
		rec store.SessionRecord
		err error
	)
	if id == "" {
		rec, err = st.LatestSession(ctx)
	} else {
		rec, err = st.ReadSession(ctx, id)
	}
	if errors.Is(err, store.ErrSessionNotFound) {
		return "", WrapExitError(ExitCommandError, "no such session", err)
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read session", err)
	}
	return rec.ID, nil
}
