// Copyright 2026 Kadir Pekel
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

package llm

import "strings"

// modelPrice holds USD prices per million tokens.
type modelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// priceTable is a static snapshot used for cost estimates only; it is
// not billing-grade. Unknown models cost zero.
var priceTable = map[string]modelPrice{
	"gpt-4o":                 {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":            {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4":                  {InputPerMTok: 30.00, OutputPerMTok: 60.00},
	"gpt-4-turbo":            {InputPerMTok: 10.00, OutputPerMTok: 30.00},
	"gpt-3.5-turbo":          {InputPerMTok: 0.50, OutputPerMTok: 1.50},
	"claude-3-5-sonnet":      {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-opus":          {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"claude-3-haiku":         {InputPerMTok: 0.25, OutputPerMTok: 1.25},
	"gemini-2.0-flash":       {InputPerMTok: 0.10, OutputPerMTok: 0.40},
	"gemini-1.5-pro":         {InputPerMTok: 1.25, OutputPerMTok: 5.00},
	"text-embedding-ada-002": {InputPerMTok: 0.10},
}

// estimateCost computes the USD cost estimate for one call. Models are
// matched exactly first, then by prefix (claude-3-5-sonnet-20241022
// matches claude-3-5-sonnet).
func estimateCost(model string, usage Usage) float64 {
	price, ok := priceTable[model]
	if !ok {
		for prefix, p := range priceTable {
			if strings.HasPrefix(model, prefix) {
				price = p
				ok = true
				break
			}
		}
	}
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*price.InputPerMTok/1e6 +
		float64(usage.CompletionTokens)*price.OutputPerMTok/1e6
}
