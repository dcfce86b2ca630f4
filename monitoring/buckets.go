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

package monitoring

// SealBuckets returns histogram upper limits suited to seal passes, which
// include ledger submission and can last from milliseconds to the full
// retry schedule of several minutes.
func SealBuckets() []float64 {
	return ExpBuckets(0.01, 2, 17)
}

// SizeBuckets returns upper limits for epoch sizes, powers of two from 1 to
// 2^20 leaves.
func SizeBuckets() []float64 {
	return ExpBuckets(1, 2, 21)
}

// ExpBuckets returns the specified number of histogram buckets with
// exponentially increasing thresholds between base and
// base * mult^(buckets-1).
func ExpBuckets(base, mult float64, buckets uint) []float64 {
	r := make([]float64, buckets)
	for i, exp := uint(0), base; i < buckets; i, exp = i+1, exp*mult {
		r[i] = exp
	}
	return r
}
