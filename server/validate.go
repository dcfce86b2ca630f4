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

package server

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxFieldLen = 1024

func validateLeafRequest(req *LeafRequest) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "LeafRequest missing")
	}
	if err := req.Fingerprint.Validate(); err != nil {
		return status.Errorf(codes.InvalidArgument, "LeafRequest.Fingerprint: %v", err)
	}
	if req.Recipient == "" {
		return status.Error(codes.InvalidArgument, "LeafRequest.Recipient empty")
	}
	for name, v := range map[string]string{
		"Recipient":    req.Recipient,
		"CaseNumber":   req.CaseNumber,
		"FileID":       req.FileID,
		"Investigator": req.Investigator,
		"Comments":     req.Comments,
	} {
		if len(v) > maxFieldLen {
			return status.Errorf(codes.InvalidArgument, "LeafRequest.%s: %d bytes, want <= %d", name, len(v), maxFieldLen)
		}
	}
	return nil
}
