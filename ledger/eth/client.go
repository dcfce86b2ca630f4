// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eth implements the ledger client on an Ethereum-compatible chain
// using go-ethereum.
package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/txpool"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/notify"
	"github.com/horodocs/horodocs/types"
	"k8s.io/klog/v2"
)

// Backend is the subset of ethclient.Client used by Client.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Options configures a Client.
type Options struct {
	// Contract is the address of the anchoring contract.
	Contract common.Address
	// Key signs anchoring transactions.
	Key *ecdsa.PrivateKey
	// MinBalance is the balance, in ether, under which operators are
	// warned after each submission. Zero disables the check.
	MinBalance int64
	// ExplorerURL prefixes transaction hashes in VerificationURL.
	ExplorerURL string
}

// Client talks to the anchoring contract. It implements ledger.Client.
type Client struct {
	backend    Backend
	opts       Options
	from       common.Address
	abi        abi.ABI
	capability *ledger.Capability
	notifier   notify.Notifier

	submits monitoring.Counter
	balance monitoring.Gauge

	// unsent is the last transaction whose broadcast was not acknowledged,
	// kept so that a retry with the same value re-sends it instead of
	// signing a second one with the next nonce.
	mu     sync.Mutex
	unsent *signedValue
}

type signedValue struct {
	value string
	tx    *ethtypes.Transaction
}

var _ ledger.Client = (*Client)(nil)

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, opts Options, capability *ledger.Capability, n notify.Notifier, mf monitoring.MetricFactory) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ledger.ErrLedgerCommunication, url, err)
	}
	return New(ec, opts, capability, n, mf)
}

// New returns a Client using backend.
func New(backend Backend, opts Options, capability *ledger.Capability, n notify.Notifier, mf monitoring.MetricFactory) (*Client, error) {
	if opts.Key == nil {
		return nil, errors.New("eth: no signing key")
	}
	a, err := parseABI()
	if err != nil {
		return nil, err
	}
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	if n == nil {
		n = notify.LogNotifier{}
	}
	if capability == nil {
		capability = ledger.NewCapability(mf)
	}
	return &Client{
		backend:    backend,
		opts:       opts,
		from:       crypto.PubkeyToAddress(opts.Key.PublicKey),
		abi:        a,
		capability: capability,
		notifier:   n,
		submits:    mf.NewCounter("ledger_submissions", "Anchoring transactions by outcome", "outcome"),
		balance:    mf.NewGauge("ledger_balance_ether", "Balance of the anchoring account after the last submission"),
	}, nil
}

// ParseKey decodes a hex private key, with or without 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}

// Address returns the account that signs anchoring transactions.
func (c *Client) Address() common.Address {
	return c.from
}

// Submit implements ledger.Submitter. After a failed broadcast, a further
// call with the same value re-sends the transaction already signed for it,
// so an acknowledgement lost in transit cannot produce two anchors.
func (c *Client) Submit(ctx context.Context, value string) (ledger.TxID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tx *ethtypes.Transaction
	if c.unsent != nil && c.unsent.value == value {
		tx = c.unsent.tx
		klog.Infof("Re-sending anchoring transaction %s (nonce %d)", tx.Hash().Hex(), tx.Nonce())
	} else {
		var err error
		if tx, err = c.buildTx(ctx, value); err != nil {
			c.submits.Inc("build_error")
			return "", fmt.Errorf("%w: %v", ledger.ErrLedgerCommunication, err)
		}
		c.unsent = &signedValue{value: value, tx: tx}
	}

	if err := c.send(ctx, tx); err != nil {
		c.submits.Inc("rejected")
		c.capability.Disable(err)
		c.warn(ctx, fmt.Sprintf("anchoring transaction rejected: %v", err))
		return "", fmt.Errorf("%w: broadcast rejected: %v", ledger.ErrLedgerCommunication, err)
	}
	c.unsent = nil
	c.submits.Inc("ok")
	c.capability.Enable()
	c.checkBalance(ctx)
	id := ledger.TxID(tx.Hash().Hex())
	klog.Infof("Submitted anchoring transaction %s (nonce %d)", id, tx.Nonce())
	return id, nil
}

// send broadcasts tx. A node that already holds tx, or has mined it, counts
// as a successful broadcast.
func (c *Client) send(ctx context.Context, tx *ethtypes.Transaction) error {
	err := c.backend.SendTransaction(ctx, tx)
	switch {
	case err == nil:
		return nil
	case isTxError(err, txpool.ErrAlreadyKnown):
		klog.Infof("Node already knows %s", tx.Hash().Hex())
		return nil
	case isTxError(err, core.ErrNonceTooLow):
		if _, _, lerr := c.backend.TransactionByHash(ctx, tx.Hash()); lerr == nil {
			klog.Infof("%s was already mined", tx.Hash().Hex())
			return nil
		}
		// The nonce went to another transaction: sign afresh next time.
		c.unsent = nil
	}
	return err
}

// isTxError matches target both locally and across JSON-RPC, where only the
// message survives.
func isTxError(err, target error) bool {
	return errors.Is(err, target) || strings.Contains(err.Error(), target.Error())
}

func (c *Client) buildTx(ctx context.Context, value string) (*ethtypes.Transaction, error) {
	data, err := c.abi.Pack(updateMethod, value)
	if err != nil {
		return nil, fmt.Errorf("packing call: %v", err)
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %v", err)
	}
	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %v", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %v", err)
	}
	to := c.opts.Contract
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimating gas: %v", err)
	}
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), c.opts.Key)
}

// checkBalance warns the operators when the account is running dry. Its
// failures are logged only.
func (c *Client) checkBalance(ctx context.Context) {
	wei, err := c.backend.BalanceAt(ctx, c.from, nil)
	if err != nil {
		klog.Warningf("Could not read balance of %s: %v", c.from.Hex(), err)
		return
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	c.balance.Set(ether)
	if c.opts.MinBalance <= 0 {
		return
	}
	floor := new(big.Int).Mul(big.NewInt(c.opts.MinBalance), big.NewInt(params.Ether))
	if wei.Cmp(floor) < 0 {
		c.warn(ctx, fmt.Sprintf("Ethereum balance low at %g ether", ether))
	}
}

func (c *Client) warn(ctx context.Context, msg string) {
	if err := c.notifier.Notify(ctx, notify.Notification{Kind: notify.OperatorWarning, Message: msg}); err != nil {
		klog.Errorf("Failed to warn operators (%q): %v", msg, err)
	}
}

// ConfirmationState implements ledger.ConfirmationChecker. A transaction is
// final once its block is at or below the latest finalized block.
func (c *Client) ConfirmationState(ctx context.Context, id ledger.TxID) (ledger.ConfirmationState, error) {
	hash := common.HexToHash(string(id))
	_, pending, err := c.backend.TransactionByHash(ctx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return ledger.NotFound, nil
	case err != nil:
		return ledger.Indeterminate, fmt.Errorf("%w: %v", ledger.ErrLedgerCommunication, err)
	case pending:
		return ledger.Indeterminate, nil
	}
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) || (err == nil && receipt.BlockNumber == nil) {
		return ledger.Indeterminate, nil
	}
	if err != nil {
		return ledger.Indeterminate, fmt.Errorf("%w: %v", ledger.ErrLedgerCommunication, err)
	}
	finalized, err := c.backend.HeaderByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
	if err != nil {
		return ledger.Indeterminate, fmt.Errorf("%w: finalized header: %v", ledger.ErrLedgerCommunication, err)
	}
	if finalized.Number.Cmp(receipt.BlockNumber) >= 0 {
		return ledger.Final, nil
	}
	return ledger.Pending, nil
}

// Decode implements ledger.Decoder.
func (c *Client) Decode(input []byte) (types.AnchorPayload, error) {
	s, err := unpackString(c.abi, input)
	if err != nil {
		return types.AnchorPayload{}, fmt.Errorf("%w: %v", types.ErrNotAnchor, err)
	}
	return types.ParseAnchorPayload(s)
}

// CurrentValue reads the value currently held by the contract.
func (c *Client) CurrentValue(ctx context.Context) (string, error) {
	data, err := c.abi.Pack(getMethod)
	if err != nil {
		return "", err
	}
	to := c.opts.Contract
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrLedgerCommunication, err)
	}
	vals, err := c.abi.Unpack(getMethod, out)
	if err != nil {
		return "", err
	}
	s, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("getTxtid returned %T", vals[0])
	}
	return s, nil
}

// BlockTime returns the time of the block that included id, in seconds
// since the epoch.
func (c *Client) BlockTime(ctx context.Context, id ledger.TxID) (uint64, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(string(id)))
	if err != nil {
		return 0, fmt.Errorf("%w: receipt of %s: %v", ledger.ErrLedgerCommunication, id, err)
	}
	h, err := c.backend.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return 0, fmt.Errorf("%w: header %v: %v", ledger.ErrLedgerCommunication, receipt.BlockNumber, err)
	}
	return h.Time, nil
}

// VerificationURL returns the block explorer page of id.
func (c *Client) VerificationURL(id ledger.TxID) string {
	return strings.TrimSuffix(c.opts.ExplorerURL, "/") + "/tx/" + string(id)
}
