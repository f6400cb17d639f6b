package analysis

import (
	"math"

	"github.com/pawnsight/coach/internal/engine"
)

// Quality score weights. Depth carries the most signal; node count and
// outright completion split the rest.
const (
	depthWeight      = 40.0
	nodesWeight      = 30.0
	completionFull   = 30.0
	completionNear   = 20.0 // within 2 plies of target
	completionClose  = 10.0 // within 5 plies of target
	nodesFloor       = 10000
	nodesPerPlyScale = 500
)

// QualityScore computes a 0-100 confidence score for an analysis from the
// achieved depth, the node count, and the requested target depth.
// Monotonically non-decreasing in both achievedDepth and nodes.
func QualityScore(achievedDepth int, nodes int64, targetDepth int) int {
	if targetDepth < engine.MinDepth {
		targetDepth = engine.MinDepth
	}

	depthRatio := float64(achievedDepth) / float64(targetDepth)
	if depthRatio > 1 {
		depthRatio = 1
	}
	if depthRatio < 0 {
		depthRatio = 0
	}

	expectedNodes := float64(targetDepth * nodesPerPlyScale)
	if expectedNodes < nodesFloor {
		expectedNodes = nodesFloor
	}
	nodesRatio := float64(nodes) / expectedNodes
	if nodesRatio > 1 {
		nodesRatio = 1
	}
	if nodesRatio < 0 {
		nodesRatio = 0
	}

	var bonus float64
	switch {
	case achievedDepth >= targetDepth:
		bonus = completionFull
	case achievedDepth >= targetDepth-2:
		bonus = completionNear
	case achievedDepth >= targetDepth-5:
		bonus = completionClose
	}

	score := int(math.Round(depthRatio*depthWeight + nodesRatio*nodesWeight + bonus))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
