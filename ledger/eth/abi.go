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

package eth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI describes the anchoring contract: a single string slot that
// every anchoring transaction overwrites.
const contractABI = `[
	{"type":"function","name":"updateTxtid","stateMutability":"nonpayable",
	 "inputs":[{"name":"newTxtid","type":"string"}],"outputs":[]},
	{"type":"function","name":"getTxtid","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const (
	updateMethod = "updateTxtid"
	getMethod    = "getTxtid"
)

func parseABI() (abi.ABI, error) {
	a, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing contract ABI: %w", err)
	}
	return a, nil
}

// unpackString decodes the call data of an updateTxtid transaction.
func unpackString(a abi.ABI, input []byte) (string, error) {
	if len(input) < 4 {
		return "", fmt.Errorf("call data of %d bytes has no method selector", len(input))
	}
	m, err := a.MethodById(input[:4])
	if err != nil {
		return "", err
	}
	if m.Name != updateMethod {
		return "", fmt.Errorf("call to %s, want %s", m.Name, updateMethod)
	}
	args, err := m.Inputs.Unpack(input[4:])
	if err != nil {
		return "", err
	}
	if len(args) != 1 {
		return "", fmt.Errorf("got %d arguments, want 1", len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("argument is %T, want string", args[0])
	}
	return s, nil
}
