package ingest

import (
	"context"

	"github.com/recallgraph/recallgraph/internal/cluster"
	"github.com/recallgraph/recallgraph/internal/model"
)

func toModelMembers(assignments []cluster.Assignment) []model.ClusterMember {
	out := make([]model.ClusterMember, len(assignments))
	for i, a := range assignments {
		out[i] = model.ClusterMember{ChunkID: a.ChunkID, ClusterID: a.ClusterID, Distance: a.Distance}
	}
	return out
}

// recluster runs a full batch clustering pass (C5) over every chunk
// currently stored for a project and replaces its cluster membership
// atomically (spec.md §4.5 "replaces the membership atomically").
func (d *Driver) recluster(ctx context.Context, project string) (int, error) {
	sessions, err := d.deps.Metadata.ListSessions(ctx, project)
	if err != nil {
		return 0, err
	}

	var points []cluster.Point
	for _, s := range sessions {
		chunks, err := d.deps.Metadata.ListChunksBySession(ctx, project, s.SessionID)
		if err != nil {
			return 0, err
		}
		for _, c := range chunks {
			vec, ok := d.deps.Vectors.Get(c.ID)
			if !ok {
				continue
			}
			points = append(points, cluster.Point{ChunkID: c.ID, Vector: vec})
		}
	}

	result := cluster.Recluster(points, d.deps.ClusterOptions)
	for _, c := range result.Clusters {
		if err := d.deps.Metadata.SaveCluster(ctx, c); err != nil {
			return 0, err
		}
	}
	if len(result.Assignments) > 0 {
		if err := d.deps.Metadata.ReplaceClusterMembership(ctx, toModelMembers(result.Assignments)); err != nil {
			return 0, err
		}
	}
	return len(result.Clusters), nil
}
