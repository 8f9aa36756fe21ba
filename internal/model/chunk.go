// Package model provides data models for the ragx pipeline platform.
package model

import "fmt"

// BuildChunkKey renders the vector-store primary key file_no:page:chunk_id.
func BuildChunkKey(fileNo string, page, chunkID int) string {
	return fmt.Sprintf("%s:%d:%d", fileNo, page, chunkID)
}

// Asset is a non-text artifact (figure or table crop) referenced by a chunk
// through a placeholder in the extracted text.
type Asset struct {
	Kind string `json:"kind"` // fig or tbl
	UID  string `json:"uid"`
	Desc string `json:"desc,omitempty"`
}

// Chunk is one unit of text produced by a chunking strategy. Chunks are
// immutable once produced; chunk_id increments per source document.
type Chunk struct {
	Page        int      `json:"page"`
	ChunkID     int      `json:"chunk_id"`
	Text        string   `json:"text"`
	SectionPath []string `json:"section_path,omitempty"`
	Anchor      string   `json:"anchor,omitempty"`
	BlockTypes  []string `json:"block_types,omitempty"`
	Assets      []Asset  `json:"assets,omitempty"`
}

// EmbeddedChunk is a chunk together with its dense embedding. The embedding
// dimension must match the embedding strategy's declared dimension.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// VectorRecord is the persisted unit in the vector store, keyed by
// (collection, partition, chunk_key). Sparse weights are keyed by hashed
// term index.
type VectorRecord struct {
	ChunkKey string             `json:"chunk_key"` // file_no:page:chunk_id
	FileNo   string             `json:"file_no"`
	FileName string             `json:"file_name"`
	PageNo   int                `json:"page_no"`
	IndexNo  int                `json:"index_no"`
	Text     string             `json:"text"`
	Dense    []float32          `json:"dense,omitempty"`
	Sparse   map[uint32]float32 `json:"sparse,omitempty"`
}

// Retrieval sources recorded on retrieved chunks.
const (
	SourceDense  = "dense"
	SourceSparse = "sparse"
	SourceFused  = "fused"
)

// RetrievedChunk is the single record shape flowing from retrieval through
// reranking to generation. Score is the final rank score once reranking has
// run; Source records which index produced the candidate.
type RetrievedChunk struct {
	Text     string  `json:"text"`
	Page     int     `json:"page"`
	ChunkID  int     `json:"chunk_id"`
	Score    float64 `json:"score"`
	FileNo   string  `json:"file_no"`
	FileName string  `json:"file_name"`
	Source   string  `json:"source,omitempty"`
}

// ChunkKey builds the vector-store primary key for a chunk of a file.
func (c *RetrievedChunk) ChunkKey() string {
	return BuildChunkKey(c.FileNo, c.Page, c.ChunkID)
}
