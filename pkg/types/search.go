// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// SearchConfig holds the knobs forwarded to the external evidence-lookup
// service when reviewers pull supporting chunks for a document.
type SearchConfig struct {
	// MaxChunks is the maximum number of chunks to return (default 5).
	MaxChunks int `json:"max_chunks" yaml:"max_chunks"`

	// MinRelevance is the minimum relevance score in [0.0, 1.0] (default 0.7).
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// ModelName is the embedding model identifier (default "BAAI/bge-large-en").
	ModelName string `json:"model_name" yaml:"model_name"`
}

// WithDefaults returns the config with zero-valued knobs replaced by the
// documented defaults.
func (c SearchConfig) WithDefaults() SearchConfig {
	if c.MaxChunks <= 0 {
		c.MaxChunks = 5
	}
	if c.MinRelevance <= 0 {
		c.MinRelevance = 0.7
	}
	if c.ModelName == "" {
		c.ModelName = "BAAI/bge-large-en"
	}
	return c
}

// Validate checks the configured bounds.
func (c SearchConfig) Validate() error {
	if c.MaxChunks <= 0 {
		return fmt.Errorf("search config: max_chunks must be positive")
	}
	if c.MinRelevance < 0.0 || c.MinRelevance > 1.0 {
		return fmt.Errorf("search config: min_relevance %v outside [0.0, 1.0]", c.MinRelevance)
	}
	return nil
}

// ChunkMetadata locates a retrieved text chunk within its source paper.
type ChunkMetadata struct {
	PaperID      string `json:"paper_id" yaml:"paper_id"`
	Section      string `json:"section" yaml:"section"`
	SectionLevel int    `json:"section_level" yaml:"section_level"`
	ChunkIndex   int    `json:"chunk_index" yaml:"chunk_index"`
	TokenCount   int    `json:"token_count" yaml:"token_count"`

	// EmbeddingModel names the model that produced the chunk's vector.
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`
}

// Validate checks the chunk position fields.
func (m ChunkMetadata) Validate() error {
	if m.PaperID == "" {
		return fmt.Errorf("chunk: missing paper id")
	}
	if m.SectionLevel < 0 || m.ChunkIndex < 0 {
		return fmt.Errorf("chunk %s[%d]: negative position", m.PaperID, m.ChunkIndex)
	}
	if m.TokenCount <= 0 {
		return fmt.Errorf("chunk %s[%d]: token count must be positive", m.PaperID, m.ChunkIndex)
	}
	return nil
}

// SearchResult is one evidence chunk returned by the retrieval service.
type SearchResult struct {
	Text      string        `json:"text" yaml:"text"`
	Section   string        `json:"section" yaml:"section"`
	Relevance float64       `json:"relevance" yaml:"relevance"`
	Metadata  ChunkMetadata `json:"metadata" yaml:"metadata"`
}

// Validate checks the result shape.
func (r SearchResult) Validate() error {
	if r.Relevance < 0.0 || r.Relevance > 1.0 {
		return fmt.Errorf("search result: relevance %v outside [0.0, 1.0]", r.Relevance)
	}
	return r.Metadata.Validate()
}
