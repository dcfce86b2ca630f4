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

// Package index keeps a local snapshot of every transaction sent to the
// anchoring contract, as listed by an Etherscan-compatible indexer, so that
// receipts can be verified without scanning the chain.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrIndexerUnavailable is wrapped by errors from fetching the transaction
// list.
var ErrIndexerUnavailable = errors.New("transaction indexer unavailable")

// userAgent is sent because some indexers reject unknown clients.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) horodocs"

// Transaction is one entry of the indexer's transaction list. Numbers are
// kept as the decimal strings the indexer returns.
type Transaction struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	Nonce       string `json:"nonce,omitempty"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value,omitempty"`
	Input       string `json:"input"`
	IsError     string `json:"isError,omitempty"`
	// TxReceiptStatus is "1" for successful transactions.
	TxReceiptStatus string `json:"txreceipt_status,omitempty"`
	FunctionName    string `json:"functionName,omitempty"`
}

// Envelope is the indexer response, also used as the snapshot file format.
type Envelope struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Result  []Transaction `json:"result"`
}

// Fetcher lists the contract's transactions.
type Fetcher interface {
	Fetch(ctx context.Context) (*Envelope, error)
}

// Client queries an Etherscan-compatible API.
type Client struct {
	// URL is the API endpoint, e.g. https://api-sepolia.etherscan.io/api.
	URL      string
	APIKey   string
	Contract string
	HTTP     *http.Client
	Timeout  time.Duration
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context) (*Envelope, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("index: bad URL: %v", err)
	}
	q := u.Query()
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", c.Contract)
	q.Set("sort", "asc")
	q.Set("apikey", c.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexerUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrIndexerUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %s", ErrIndexerUnavailable, resp.Status)
	}
	return decodeEnvelope(body)
}

func decodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrIndexerUnavailable, err)
	}
	if env.Status != "1" {
		return nil, fmt.Errorf("%w: status %q: %s", ErrIndexerUnavailable, env.Status, env.Message)
	}
	return &env, nil
}
