package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
	"github.com/bowtae-labs/tsrc/pkg/handlers"
)

// Local provider implementations for single-node operation. Each logs
// the effect instead of calling an external system; production
// deployments swap these for real integrations.

type logRecorder struct{}

func (logRecorder) Record(ctx context.Context, record *handlers.ScoreRecord) error {
	slog.Info("score recorded",
		"command_id", record.CommandID,
		"submission_hash", record.SubmissionHash,
	)
	return nil
}

type logPaymentProvider struct{}

func (logPaymentProvider) OpenSession(ctx context.Context, commandID string, amount float64, currency string) (*handlers.PaymentSession, error) {
	sessionID := canonicalize.HashText("payment:" + commandID)[:16]
	slog.Info("payment session opened",
		"command_id", commandID,
		"session_id", sessionID,
		"amount", amount,
		"currency", currency,
	)
	return &handlers.PaymentSession{SessionID: sessionID, Amount: amount, Currency: currency}, nil
}

type logRegistrar struct{}

func (logRegistrar) Register(ctx context.Context, commandID, transactionHash string) (*handlers.ChainReceipt, error) {
	anchorRef := fmt.Sprintf("local:%s", canonicalize.HashText("anchor:"+commandID)[:16])
	slog.Info("transaction anchored",
		"command_id", commandID,
		"transaction_hash", transactionHash,
		"anchor_ref", anchorRef,
	)
	return &handlers.ChainReceipt{TransactionHash: transactionHash, AnchorRef: anchorRef}, nil
}
