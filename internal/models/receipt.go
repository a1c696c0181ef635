// Copyright (c) 2026 John Earle
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

package models

// Sentinel values recorded when extraction returns no result. The listing
// UI detects these literal values, so they must not change.
const (
	UnknownMerchant = "unknown"
	UnknownAmount   = float64(-1)
)

// ExtractedReceipt is the structured output of OCR + language-model
// extraction. It is only ever constructed after a successful OCR call.
type ExtractedReceipt struct {
	MerchantName string  `json:"merchant_name"`
	TotalAmount  float64 `json:"total_amount"`
}
