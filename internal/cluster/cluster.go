// Package cluster groups chunk embeddings into density-based clusters for
// cluster-expansion retrieval (spec.md §4.5 C5, §4.6 step 4). The assignment
// pass is grounded on the greedy-centroid-then-connected-component pattern
// used by the Nucleus platform's clustering activity: assign each point to
// its nearest existing centroid when above a similarity threshold, start a
// new cluster otherwise, then merge mutually-similar points into connected
// components and keep only components that meet a minimum size — the
// HDBSCAN-style "dense region" criterion spec.md calls for.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/recallgraph/recallgraph/internal/model"
)

// Config tunes the clustering pass (spec.md §8 clustering.* keys).
type Config struct {
	// Threshold is the angular-distance cut below which two points may share
	// a cluster (lower distance = closer). Default 0.35.
	Threshold float64
	// MinClusterSize is the HDBSCAN-style minimum member count; connected
	// components smaller than this are discarded (members become unclustered).
	MinClusterSize int
	// MaxExemplars bounds how many exemplar chunk ids a cluster record keeps.
	MaxExemplars int
}

// DefaultConfig returns recallgraph's default clustering parameters.
func DefaultConfig() Config {
	return Config{Threshold: 0.35, MinClusterSize: 3, MaxExemplars: 3}
}

// Point is one embedded chunk handed to the clusterer.
type Point struct {
	ChunkID string
	Vector  []float32
}

// Assignment is one chunk's resulting cluster membership.
type Assignment struct {
	ChunkID   string
	ClusterID string
	Distance  float64 // angular distance to the cluster centroid
}

// Result is the full output of a clustering pass: the cluster records and
// every member assignment. Unclustered points (below MinClusterSize) are
// simply absent from Assignments.
type Result struct {
	Clusters    []model.Cluster
	Assignments []Assignment
}

// Recluster runs a full batch clustering pass over points and returns the
// resulting cluster set and membership, ready for an atomic membership
// replacement (spec.md §4.5 "replaces the membership atomically").
func Recluster(points []Point, cfg Config) Result {
	if cfg.MinClusterSize < 1 {
		cfg.MinClusterSize = 1
	}

	assignments, centroidOf := greedyAssign(points, cfg.Threshold)
	components := refineComponents(points, assignments, centroidOf, cfg.Threshold)

	var result Result
	for _, comp := range components {
		if len(comp) < cfg.MinClusterSize {
			continue
		}

		centroid := centroidOfIDs(points, comp)
		clusterID := uuid.NewString()
		now := time.Now().UTC()

		members := make([]Assignment, 0, len(comp))
		for _, id := range comp {
			vec := vectorOf(points, id)
			d := angularDistance(vec, centroid)
			members = append(members, Assignment{ChunkID: id, ClusterID: clusterID, Distance: d})
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Distance < members[j].Distance })

		exemplars := make([]string, 0, cfg.MaxExemplars)
		for i := 0; i < len(members) && i < cfg.MaxExemplars; i++ {
			exemplars = append(exemplars, members[i].ChunkID)
		}

		result.Clusters = append(result.Clusters, model.Cluster{
			ID:          clusterID,
			CreatedAt:   now,
			RefreshedAt: now,
			Exemplars:   exemplars,
		})
		result.Assignments = append(result.Assignments, members...)
	}

	return result
}

// greedyAssign performs the first pass: each point joins the nearest
// existing centroid within threshold, else seeds a new singleton cluster.
// Returns a point-id -> provisional cluster-id map and each cluster's
// running centroid, both keyed by the provisional id.
func greedyAssign(points []Point, threshold float64) (map[string]string, map[string][]float32) {
	type provisional struct {
		centroid []float32
		n        int
	}
	var provisionals []provisional
	var ids []string

	assignments := make(map[string]string, len(points))

	for _, p := range points {
		if len(p.Vector) == 0 {
			continue
		}
		bestIdx := -1
		bestDist := math.Inf(1)
		for idx, prov := range provisionals {
			d := float64(angularDistance(p.Vector, prov.centroid))
			if d < bestDist {
				bestDist = d
				bestIdx = idx
			}
		}
		if bestIdx >= 0 && bestDist <= threshold {
			provisionals[bestIdx].centroid = runningAverage(provisionals[bestIdx].centroid, p.Vector, provisionals[bestIdx].n+1)
			provisionals[bestIdx].n++
			assignments[p.ChunkID] = ids[bestIdx]
		} else {
			cid := fmt.Sprintf("prov-%d", len(provisionals))
			provisionals = append(provisionals, provisional{centroid: p.Vector, n: 1})
			ids = append(ids, cid)
			assignments[p.ChunkID] = cid
		}
	}

	centroids := make(map[string][]float32, len(ids))
	for i, id := range ids {
		centroids[id] = provisionals[i].centroid
	}
	return assignments, centroids
}

// refineComponents merges points that are mutually within threshold into
// connected components, regardless of their provisional centroid
// assignment — this recovers clusters the greedy, order-dependent first
// pass would otherwise split or merge incorrectly.
func refineComponents(points []Point, _ map[string]string, _ map[string][]float32, threshold float64) [][]string {
	ids := make([]string, 0, len(points))
	vecs := make([][]float32, 0, len(points))
	for _, p := range points {
		if len(p.Vector) == 0 {
			continue
		}
		ids = append(ids, p.ChunkID)
		vecs = append(vecs, p.Vector)
	}

	n := len(ids)
	adjacency := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if float64(angularDistance(vecs[i], vecs[j])) <= threshold {
				adjacency[i] = append(adjacency[i], j)
				adjacency[j] = append(adjacency[j], i)
			}
		}
	}

	visited := make([]bool, n)
	var components [][]string
	var stack []int
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		stack = stack[:0]
		stack = append(stack, i)
		var comp []string
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[k] {
				continue
			}
			visited[k] = true
			comp = append(comp, ids[k])
			for _, nb := range adjacency[k] {
				if !visited[nb] {
					stack = append(stack, nb)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

func vectorOf(points []Point, id string) []float32 {
	for _, p := range points {
		if p.ChunkID == id {
			return p.Vector
		}
	}
	return nil
}

func centroidOfIDs(points []Point, ids []string) []float32 {
	var centroid []float32
	n := 0
	for _, id := range ids {
		v := vectorOf(points, id)
		if len(v) == 0 {
			continue
		}
		n++
		centroid = runningAverage(centroid, v, n)
	}
	return centroid
}

func runningAverage(acc, next []float32, total int) []float32 {
	if len(acc) == 0 {
		out := make([]float32, len(next))
		copy(out, next)
		return out
	}
	out := make([]float32, len(acc))
	for i := range acc {
		out[i] = (acc[i]*float32(total-1) + next[i]) / float32(total)
	}
	return out
}

// angularDistance matches the convention used across recallgraph's vector
// store: 2*acos(dot)/π over unit vectors, in [0,1].
func angularDistance(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return float32(2 * math.Acos(cos) / math.Pi)
}
