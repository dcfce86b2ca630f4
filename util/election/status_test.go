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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStatus(t *testing.T) {
	var changes []bool
	s := NewStatus(func(isMaster bool) { changes = append(changes, isMaster) })
	if s.IsMaster() {
		t.Fatal("new Status is master")
	}
	s.Set(true)
	s.Set(true)
	if !s.IsMaster() {
		t.Error("IsMaster()=false after Set(true)")
	}
	s.Set(false)
	if s.IsMaster() {
		t.Error("IsMaster()=true after Set(false)")
	}
	if diff := cmp.Diff([]bool{true, false}, changes); diff != "" {
		t.Errorf("notifications diff (-want +got):\n%s", diff)
	}
}
