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

// Package entropy supplies the random bytes used for salts, witnesses and
// padding leaves. A hardware random number generator reachable over HTTP
// can be preferred, with the operating system generator as fallback.
package entropy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/horodocs/horodocs/monitoring"
	"k8s.io/klog/v2"
)

// MaxHTTPBytes is the largest request the HTTP generator accepts.
const MaxHTTPBytes = 128

// ErrInvalidLength is returned for byte counts a source cannot serve.
var ErrInvalidLength = errors.New("entropy: invalid length")

// Source produces random bytes.
type Source interface {
	Read(ctx context.Context, n int) ([]byte, error)
}

// Hex reads n bytes from src and returns them hex encoded.
func Hex(ctx context.Context, src Source, n int) (string, error) {
	b, err := src.Read(ctx, n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Secure reads from crypto/rand.
type Secure struct{}

// Read implements Source.
func (Secure) Read(_ context.Context, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// HTTPSource fetches hex encoded bytes from a generator serving
// GET <URL>/x/<n>.
type HTTPSource struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// Read implements Source.
func (h *HTTPSource) Read(ctx context.Context, n int) ([]byte, error) {
	if n < 1 || n > MaxHTTPBytes {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLength, n, MaxHTTPBytes)
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/x/%d", strings.TrimSuffix(h.URL, "/"), n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entropy: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entropy: generator returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*MaxHTTPBytes))
	if err != nil {
		return nil, fmt.Errorf("entropy: reading body: %w", err)
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("entropy: decoding body: %w", err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("entropy: got %d bytes, want %d", len(b), n)
	}
	return b, nil
}

// Fallback reads from Primary and, if that fails, from Secondary.
type Fallback struct {
	Primary   Source
	Secondary Source

	fallbacks monitoring.Counter
}

// NewFallback returns a Fallback counting its fallbacks in a metric created
// with mf.
func NewFallback(primary, secondary Source, mf monitoring.MetricFactory) *Fallback {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	return &Fallback{
		Primary:   primary,
		Secondary: secondary,
		fallbacks: mf.NewCounter("entropy_fallbacks", "Number of reads served by the fallback entropy source"),
	}
}

// Read implements Source.
func (f *Fallback) Read(ctx context.Context, n int) ([]byte, error) {
	b, err := f.Primary.Read(ctx, n)
	if err == nil {
		return b, nil
	}
	klog.Warningf("Primary entropy source failed, using fallback: %v", err)
	if f.fallbacks != nil {
		f.fallbacks.Inc()
	}
	return f.Secondary.Read(ctx, n)
}
