package search

import (
	"context"
	"sort"

	"github.com/soundprediction/episodic/pkg/driver"
)

// DefaultRankConstant is the rank constant used by reciprocal rank fusion.
const DefaultRankConstant = 60

// RRF combines multiple ranked UUID lists using reciprocal rank fusion.
// Items appearing high in several lists score highest. Returns UUIDs and
// their fused scores, best first.
func RRF(results [][]string, rankConstant int, minScore float64) ([]string, []float64) {
	if rankConstant <= 0 {
		rankConstant = DefaultRankConstant
	}

	scores := make(map[string]float64)
	order := make(map[string]int)
	next := 0

	for _, result := range results {
		for i, uuid := range result {
			if _, seen := scores[uuid]; !seen {
				order[uuid] = next
				next++
			}
			scores[uuid] += 1.0 / float64(i+rankConstant)
		}
	}

	type uuidScore struct {
		uuid  string
		score float64
	}

	scored := make([]uuidScore, 0, len(scores))
	for uuid, score := range scores {
		if score >= minScore {
			scored = append(scored, uuidScore{uuid: uuid, score: score})
		}
	}

	// Ties break on first-seen order so results are deterministic.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return order[scored[i].uuid] < order[scored[j].uuid]
	})

	uuids := make([]string, len(scored))
	fused := make([]float64, len(scored))
	for i, item := range scored {
		uuids[i] = item.uuid
		fused[i] = item.score
	}
	return uuids, fused
}

// NodeDistanceReranker reorders node UUIDs by graph distance from a center
// node, nearest first. Nodes unreachable from the center keep their fused
// order but sort after every reachable node. The score of each node is
// 1/(1+distance).
func NodeDistanceReranker(ctx context.Context, d driver.GraphDriver, centerUUID string, uuids []string) ([]string, []float64, error) {
	if len(uuids) == 0 {
		return nil, nil, nil
	}

	distances, err := d.NodeDistances(ctx, centerUUID, uuids)
	if err != nil {
		return nil, nil, err
	}

	type ranked struct {
		uuid      string
		distance  int
		reachable bool
		position  int
	}

	items := make([]ranked, len(uuids))
	for i, uuid := range uuids {
		distance, reachable := distances[uuid]
		items[i] = ranked{uuid: uuid, distance: distance, reachable: reachable, position: i}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].reachable != items[j].reachable {
			return items[i].reachable
		}
		if items[i].reachable && items[i].distance != items[j].distance {
			return items[i].distance < items[j].distance
		}
		return items[i].position < items[j].position
	})

	sorted := make([]string, len(items))
	scores := make([]float64, len(items))
	for i, item := range items {
		sorted[i] = item.uuid
		if item.reachable {
			scores[i] = 1.0 / float64(1+item.distance)
		}
	}
	return sorted, scores, nil
}
