package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txrepl/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database  string
	SessionID string
	All       bool // include rolled-back transactions
}

// JournalListing is the output of the journal command: the journaled
// sessions, or one session's transactions.
type JournalListing struct {
	Sessions     []store.SessionRecord `json:"sessions,omitempty"`
	SessionID    string                `json:"session_id,omitempty"`
	Transactions []JournalTx           `json:"transactions,omitempty"`
}

// JournalTx is one journaled transaction.
type JournalTx struct {
	ID     int64  `json:"id"`
	Seq    int64  `json:"seq"`
	Origin string `json:"origin"`
	Status string `json:"status"`
	Input  string `json:"input"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled sessions and transactions",
		Long: `Without --session, list the sessions recorded in a journal, oldest first.
With --session, list that session's live transactions in commit order.

Examples:
  txrepl journal --db ./journal.db
  txrepl journal --db ./journal.db --session 0190a1b2-... --all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "list this session's transactions")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include rolled-back transactions")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.SessionID == "" {
		sessions, err := st.ReadSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read sessions", err)
		}
		listing := JournalListing{Sessions: sessions}
		return formatter.Success(listing, formatSessions(sessions))
	}

	id, err := resolveSession(ctx, st, opts.SessionID)
	if err != nil {
		return err
	}
	read := st.ReadLiveTransactions
	if opts.All {
		read = st.ReadTransactions
	}
	txs, err := read(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transactions", err)
	}

	listing := JournalListing{SessionID: id, Transactions: make([]JournalTx, 0, len(txs))}
	for _, tx := range txs {
		listing.Transactions = append(listing.Transactions, JournalTx{
			ID:     int64(tx.ID),
			Seq:    tx.Seq,
			Origin: tx.Origin,
			Status: tx.Status,
			Input:  tx.Input,
		})
	}
	return formatter.Success(listing, formatTransactions(listing))
}

func formatSessions(sessions []store.SessionRecord) string {
	if len(sessions) == 0 {
		return "No sessions found in journal.\n"
	}
	var b strings.Builder
	for _, s := range sessions {
		mode := ""
		if s.Strict {
			mode = " strict"
		}
		fmt.Fprintf(&b, "%s  core %s  %s%s\n", s.ID, s.CoreVersion, s.NativeString, mode)
	}
	return b.String()
}

func formatTransactions(l JournalListing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", l.SessionID)
	for _, tx := range l.Transactions {
		marker := " "
		if tx.Status == store.StatusRolledBack {
			marker = "x"
		}
		input := strings.ReplaceAll(strings.TrimRight(tx.Input, "\n"), "\n", "\n      ")
		fmt.Fprintf(&b, "%s %3d  %s\n", marker, tx.ID, input)
		if tx.Origin != "prompt" {
			fmt.Fprintf(&b, "      (from %s)\n", tx.Origin)
		}
	}
	return b.String()
}

func fileExists(path string) error {
	_, err := os.Stat(path)
	return err
}
