package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"etender/db/dbtest"
	"etender/internal/audit"
	"etender/internal/clock"
	"etender/internal/commitment"
	"etender/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCommitCmd(t *testing.T) {
	var out bytes.Buffer
	err := commitCmd([]string{"-tender", "t-1", "-bidder", "b-1", "-amount", "45500.00", "-nonce", "n-1"}, &out)
	require.NoError(t, err)

	want, err := commitment.Commit(decimal.RequireFromString("45500"), "n-1", "b-1", "t-1")
	require.NoError(t, err)
	require.Contains(t, out.String(), "commitHash: "+want)
	require.Contains(t, out.String(), "n-1")

	out.Reset()
	require.NoError(t, commitCmd([]string{"-tender", "t-1", "-bidder", "b-1", "-amount", "1"}, &out))
	require.Contains(t, out.String(), "nonce:")

	require.Error(t, commitCmd([]string{"-tender", "t-1", "-bidder", "b-1", "-amount", "lots"}, &out))
}

func TestPrintAudit(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New(t)
	log := audit.New(store, clock.NewManual(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)), nil, 0)
	for range 3 {
		_, err := log.Append(ctx, audit.Record{
			EntityKind: models.EntityTender, EntityID: "t-1", UserID: "system",
			Payload: models.BiddingClosed{TenderID: "t-1"},
		})
		require.NoError(t, err)
	}

	report, err := log.VerifyChain(ctx, 1)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printAudit(ctx, store, report, 2, &out))
	require.Contains(t, out.String(), "chain valid: 3 entries checked, head 3")
	require.Equal(t, 2, strings.Count(out.String(), "tender:t-1"))
}
