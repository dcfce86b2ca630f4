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

package election

import (
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Status records whether this instance currently holds mastership. It is
// safe for concurrent use. The zero value is not master.
type Status struct {
	master atomic.Bool
	notify func(isMaster bool)
}

// NewStatus returns a Status that calls notify, if not nil, on each change.
func NewStatus(notify func(isMaster bool)) *Status {
	return &Status{notify: notify}
}

// Set changes the recorded state.
func (s *Status) Set(isMaster bool) {
	if s.master.Swap(isMaster) == isMaster {
		klog.Warningf("mastership already %v", isMaster)
		return
	}
	if s.notify != nil {
		s.notify(isMaster)
	}
}

// IsMaster reports the recorded state.
func (s *Status) IsMaster() bool {
	return s.master.Load()
}
