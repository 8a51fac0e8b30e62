// Command tenderctl is the operator and bidder toolbox.
//
//	tenderctl commit -tender ID -bidder ID -amount 45500.00 [-nonce N]
//	tenderctl audit [-from SEQ] [-limit N]
//
// commit prints the hash to send to POST /api/tenders/{id}/bids. Keep the
// nonce: it is needed to reveal. audit reads the database named by the usual
// server configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/clock"
	"etender/internal/commitment"
	"etender/internal/config"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

const usage = "usage: tenderctl <commit|audit> [flags]"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}
	var err error
	switch os.Args[1] {
	case "commit":
		err = commitCmd(os.Args[2:], os.Stdout)
	case "audit":
		err = auditCmd(context.Background(), os.Args[2:], os.Stdout)
	default:
		err = errors.New(usage)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func commitCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	fs.SetOutput(out)
	tenderID := fs.String("tender", "", "tender id")
	bidderID := fs.String("bidder", "", "bidder user id")
	amount := fs.String("amount", "", "bid amount, at most 4 fractional digits")
	nonce := fs.String("nonce", "", "secret nonce; generated when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	value, err := decimal.NewFromString(strings.TrimSpace(*amount))
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if *nonce == "" {
		*nonce = uuid.NewString()
	}
	hash, err := commitment.Commit(value, *nonce, *bidderID, *tenderID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "commitHash: %s\nnonce:      %s\n", hash, *nonce)
	return nil
}

func auditCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(out)
	from := fs.Int64("from", 1, "first seq to verify")
	limit := fs.Int("limit", 20, "latest entries to print")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	store := db.NewStorage(conn)

	report, err := audit.New(store, clock.System{}, nil, cfg.Database.OpTimeout).VerifyChain(ctx, *from)
	if err != nil {
		return err
	}
	return printAudit(ctx, store, report, *limit, out)
}

func printAudit(ctx context.Context, store *db.Storage, report audit.Report, limit int, out io.Writer) error {
	after := max(report.HeadSeq-int64(limit), 0)
	entries, err := store.AuditEntriesAfter(ctx, after, limit)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Seq", "Action", "Entity", "User", "Recorded At", "Hash"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Seq, e.Action, string(e.EntityKind) + ":" + e.EntityID, e.UserID,
			e.Timestamp.Format(time.RFC3339), e.Hash[:12],
		})
	}
	t.Render()

	if report.Valid {
		fmt.Fprintf(out, "chain valid: %d entries checked, head %d\n", report.Checked, report.HeadSeq)
		return nil
	}
	fmt.Fprintf(out, "chain BROKEN at seq %d (%s): %s\n", report.BrokenSeq, report.BrokenAt, report.Reason)
	return errors.New("audit chain verification failed")
}
