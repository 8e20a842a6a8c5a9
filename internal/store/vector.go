// Package store implements the persistence layer for recallgraph: the
// vector store (C5 vector half), the lexical store (C5 lexical half, SQLite
// FTS5 default / Bleve alternate), the metadata store (chunks, edges,
// clusters, vector clocks), and the cluster store.
package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// ErrDimensionMismatch reports a vector whose length does not match the
// store's configured dimension (spec.md §9 supplemented dimension guard).
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store expects %d, got %d", e.Expected, e.Got)
}

// VectorResult is a single vector search hit. Distance is angular distance
// in [0,1] per spec.md §4.5: 2*acos(dot)/π for unit-normalized vectors.
type VectorResult struct {
	ID       string
	Distance float32
	Project  string
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" is the only metric spec.md requires
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible defaults, mirroring the teacher's
// HNSW parameter choices.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore supports insert, delete, point lookup, and k-nearest-neighbor
// search by unit-normalized cosine, with an optional project filter
// (spec.md §4.5).
type VectorStore interface {
	Add(ctx context.Context, ids []string, projects []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int, project string) ([]VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Get(id string) ([]float32, bool)
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Stats() HNSWStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// HNSWStore implements VectorStore over github.com/coder/hnsw, a pure-Go
// HNSW implementation (no cgo). Ported from the teacher's
// internal/store.HNSWStore: same lazy-deletion discipline (deleting the last
// node in coder/hnsw corrupts the graph, so deletions only unmap the id,
// leaving an orphan node the graph never returns because it is no longer in
// keyMap) and the same atomic temp-file-then-rename persistence.
//
// The distance-to-similarity conversion differs from the teacher's
// `1 - distance/2` cosine shortcut: recallgraph uses the angular-distance
// convention spec.md fixes, `2*acos(dot)/π`, so scores compose correctly
// with MMR and RRF math elsewhere in the pipeline.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	idMap      map[string]uint64
	keyMap     map[uint64]string
	projectMap map[string]string     // chunk id -> project tag
	vectors    map[string][]float32  // chunk id -> normalized embedding, for point lookup
	nextKey    uint64

	closed bool
}

type hnswMetadata struct {
	IDMap      map[string]uint64
	ProjectMap map[string]string
	Vectors    map[string][]float32
	NextKey    uint64
	Config     VectorStoreConfig
}

// HNSWStats reports graph occupancy for compaction decisions (spec.md §9
// supplemented background-compaction feature).
type HNSWStats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int
}

// NewHNSWStore creates a new HNSW-based vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:      graph,
		config:     cfg,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
		projectMap: make(map[string]string),
		vectors:    make(map[string][]float32),
	}, nil
}

// Add inserts vectors with their ids and project tags. Re-adding an
// existing id orphans its old graph node and assigns a fresh key.
func (s *HNSWStore) Add(ctx context.Context, ids []string, projects []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) || len(ids) != len(projects) {
		return fmt.Errorf("ids, projects, and vectors length mismatch: %d/%d/%d", len(ids), len(projects), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
		s.projectMap[id] = projects[i]
		s.vectors[id] = vec
	}

	return nil
}

// Get returns the stored, unit-normalized embedding for a chunk id, used by
// chain walking and MMR to score/compare chunks without re-running ANN
// search (spec.md §4.7/§4.6 need a point lookup the HNSW graph itself does
// not expose).
func (s *HNSWStore) Get(id string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}
	v, ok := s.vectors[id]
	return v, ok
}

// Search returns the k nearest neighbors to query by angular distance,
// optionally restricted to a single project tag. Results are sorted by
// increasing distance (spec.md §4.5).
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int, project string) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []VectorResult{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	normalizeVectorInPlace(normalizedQuery)

	// When filtering by project, over-fetch: coder/hnsw has no native
	// predicate search, so widen the candidate set geometrically until
	// either enough matches are found or the whole graph has been searched.
	fetch := k
	if project != "" {
		fetch = k * 4
		if fetch < 50 {
			fetch = 50
		}
	}
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}

	for {
		nodes := s.graph.Search(normalizedQuery, fetch)
		results := make([]VectorResult, 0, len(nodes))
		for _, node := range nodes {
			id, exists := s.keyMap[node.Key]
			if !exists {
				continue
			}
			if project != "" && s.projectMap[id] != project {
				continue
			}
			distance := angularDistance(normalizedQuery, node.Value)
			results = append(results, VectorResult{ID: id, Distance: distance, Project: s.projectMap[id]})
			if len(results) >= k {
				return results, nil
			}
		}
		if fetch >= s.graph.Len() {
			return results, nil
		}
		fetch *= 2
		if fetch > s.graph.Len() {
			fetch = s.graph.Len()
		}
	}
}

// angularDistance computes 2*acos(clamp(dot,-1,1))/π for unit vectors, the
// convention spec.md §4.5 fixes so similarity = 1 - distance/2 lands in
// [0.5, 1] for any pair of unit vectors (spec.md §8).
func angularDistance(a, b []float32) float32 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return float32(2 * math.Acos(dot) / math.Pi)
}

// Delete removes vectors by id via lazy deletion (orphans the graph node).
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.projectMap, id)
			delete(s.vectors, id)
		}
	}
	return nil
}

func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	return ids
}

func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	_, exists := s.idMap[id]
	return exists
}

func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Stats reports graph occupancy for compaction decisions.
func (s *HNSWStore) Stats() HNSWStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return HNSWStats{}
	}
	validIDs := len(s.idMap)
	graphNodes := s.graph.Len()
	return HNSWStats{ValidIDs: validIDs, GraphNodes: graphNodes, Orphans: graphNodes - validIDs}
}

// Save persists the graph and id mappings via temp-file-then-rename.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create vector store directory: %w", err)
	}

	tmpIndexPath := path + ".tmp"
	file, err := os.Create(tmpIndexPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpIndexPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpIndexPath, path); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:      s.idMap,
		ProjectMap: s.projectMap,
		Vectors:    s.vectors,
		NextKey:    s.nextKey,
		Config:     s.config,
	}

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp metadata file during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load loads the graph and id mappings from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *HNSWStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode hnsw metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.projectMap = meta.ProjectMap
	if s.projectMap == nil {
		s.projectMap = make(map[string]string)
	}
	s.vectors = meta.Vectors
	if s.vectors == nil {
		s.vectors = make(map[string][]float32)
	}
	s.keyMap = make(map[uint64]string)
	s.nextKey = meta.NextKey
	s.config = meta.Config

	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases resources. Idempotent.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// ReadHNSWStoreDimensions reads the dimension recorded in an existing
// store's metadata without loading the full graph. Returns 0 if the
// metadata file does not exist (fresh start).
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	metaPath := vectorPath + ".meta"
	file, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open hnsw metadata: %w", err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode hnsw metadata: %w", err)
	}
	return meta.Config.Dimensions, nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}
