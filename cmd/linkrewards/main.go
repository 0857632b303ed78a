// Command linkrewards points the ARC reward token at the BillSplit contract so
// fast payments can mint rewards. It must run with the token owner's key.
package main

import (
	"context"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ontime/billsplit/internal/config"
	"github.com/ontime/billsplit/internal/ledger"
	"github.com/ontime/billsplit/internal/wallet"
	"github.com/ontime/billsplit/pkg/logging"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logging.Setup()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	if cfg.ARCTokenAddress == "" || cfg.BillSplitAddress == "" || cfg.SignerPrivateKey == "" {
		slog.Error("ARC_TOKEN_ADDRESS, BILLSPLIT_ADDRESS and SIGNER_PRIVATE_KEY are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		slog.Error("Failed to connect to RPC", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	tokenAddr := common.HexToAddress(cfg.ARCTokenAddress)
	billSplit := common.HexToAddress(cfg.BillSplitAddress)
	token := ledger.NewRewardToken(client, tokenAddr)

	status, err := token.CheckLink(ctx, billSplit)
	if err != nil {
		slog.Error("Failed to read current link", "error", err)
		os.Exit(1)
	}
	if status.Linked {
		slog.Info("Reward token already linked", "token", tokenAddr.Hex(), "billsplit", billSplit.Hex())
		return
	}
	slog.Info("Linking reward token", "token", tokenAddr.Hex(), "current", status.Current.Hex(), "billsplit", billSplit.Hex())

	signer, err := wallet.NewKeySigner(cfg.SignerPrivateKey, client, big.NewInt(cfg.ChainID))
	if err != nil {
		slog.Error("Failed to load signer", "error", err)
		os.Exit(1)
	}
	call, err := ledger.EncodeLinkRewardToken(tokenAddr, billSplit)
	if err != nil {
		slog.Error("Failed to encode call", "error", err)
		os.Exit(1)
	}
	txHash, err := signer.Transact(ctx, call)
	if err != nil {
		slog.Error("Failed to send link transaction", "error", err)
		os.Exit(1)
	}
	slog.Info("Link transaction sent", "tx_hash", txHash.Hex(), "from", signer.Address().Hex())

	receipts := ledger.NewContract(client, billSplit, nil, cfg.ReceiptPollInterval)
	receipt, err := receipts.WaitForReceipt(ctx, txHash)
	if err != nil {
		slog.Error("Link transaction failed", "tx_hash", txHash.Hex(), "error", err)
		os.Exit(1)
	}
	slog.Info("Reward token linked", "block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
}
