package handlers

import (
	"context"
	"fmt"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/executor"
)

// ChainReceipt is the registrar's confirmation of an anchored record.
type ChainReceipt struct {
	TransactionHash string `json:"transaction_hash"`
	AnchorRef       string `json:"anchor_ref"`
}

// ChainRegistrar anchors transaction hashes on an external chain.
type ChainRegistrar interface {
	Register(ctx context.Context, commandID, transactionHash string) (*ChainReceipt, error)
}

// Blockchain anchors the authorized transaction hash via the registrar.
func Blockchain(registrar ChainRegistrar) executor.Handler {
	return executor.HandlerFunc(func(ctx context.Context, auth *contracts.Authorization) (any, error) {
		txHash, ok := auth.Params["transaction_hash"].(string)
		if !ok || txHash == "" {
			return nil, fmt.Errorf("handlers: blockchain: transaction_hash missing from params")
		}

		receipt, err := registrar.Register(ctx, auth.CommandID, txHash)
		if err != nil {
			return nil, fmt.Errorf("handlers: blockchain: register: %w", err)
		}
		return receipt, nil
	})
}
