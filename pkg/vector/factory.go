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

package vector

import (
	"context"
	"fmt"

	"github.com/kadirpekel/themis/pkg/config"
)

// NewProvider builds the store selected by configuration. dimension is
// the embedding dimension, needed to provision Qdrant collections.
func NewProvider(ctx context.Context, cfg config.VectorStoreConfig, dimension int) (Provider, error) {
	switch cfg.Type {
	case "chromem":
		return NewChromemProvider(cfg.Path, cfg.Collection)
	case "qdrant":
		return NewQdrantProvider(ctx, QdrantConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			APIKey:     cfg.APIKey,
			UseTLS:     cfg.UseTLS,
			Collection: cfg.Collection,
			Dimension:  dimension,
		})
	case "pinecone":
		return NewPineconeProvider(ctx, PineconeConfig{
			APIKey:    cfg.APIKey,
			IndexName: cfg.Collection,
			IndexHost: cfg.IndexHost,
		})
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}
