package overlap

import (
	"math"
	"sort"
)

// weightedPoint is a decimated representative of a cluster of foreground
// pixels. Weight is the number of source pixels it stands for.
type weightedPoint struct {
	x, y   float64
	weight float64
}

// earthMovers computes an approximate earth-mover's distance between the
// foreground point sets of the two rasters. Each set is decimated to at most
// p.MaxPoints representatives, then mass is moved greedily along the
// cheapest remaining pair. Distances are capped at p.MaxDistance; with
// PenalizeMissing, unmatched mass is charged at the cap.
func earthMovers(groundTruth, test []bool, width, height int, mask []bool, p Params) (float64, error) {
	src := foregroundPoints(groundTruth, width, mask)
	dst := foregroundPoints(test, width, mask)
	if len(src) == 0 && len(dst) == 0 {
		return 0, nil
	}
	if len(src) == 0 || len(dst) == 0 {
		if !p.PenalizeMissing {
			return 0, nil
		}
		missing := float64(len(src) + len(dst))
		return missing * p.MaxDistance, nil
	}

	supply := decimate(src, width, height, p)
	demand := decimate(dst, width, height, p)

	type pair struct {
		si, di int
		dist   float64
	}
	pairs := make([]pair, 0, len(supply)*len(demand))
	for si, s := range supply {
		for di, d := range demand {
			dist := math.Hypot(s.x-d.x, s.y-d.y)
			if dist > p.MaxDistance {
				dist = p.MaxDistance
			}
			pairs = append(pairs, pair{si: si, di: di, dist: dist})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].dist < pairs[j].dist })

	cost := 0.0
	for _, pr := range pairs {
		s := &supply[pr.si]
		d := &demand[pr.di]
		if s.weight == 0 || d.weight == 0 {
			continue
		}
		flow := math.Min(s.weight, d.weight)
		cost += flow * pr.dist
		s.weight -= flow
		d.weight -= flow
	}

	if p.PenalizeMissing {
		leftover := 0.0
		for _, s := range supply {
			leftover += s.weight
		}
		for _, d := range demand {
			leftover += d.weight
		}
		cost += leftover * p.MaxDistance
	}
	return cost, nil
}

// foregroundPoints lists the valid foreground pixel coordinates of a raster.
func foregroundPoints(raster []bool, width int, mask []bool) []weightedPoint {
	points := make([]weightedPoint, 0, 64)
	for i, fg := range raster {
		if !fg || (mask != nil && !mask[i]) {
			continue
		}
		points = append(points, weightedPoint{
			x:      float64(i % width),
			y:      float64(i / width),
			weight: 1,
		})
	}
	return points
}

// decimate reduces a point set to at most p.MaxPoints weighted
// representatives, each carrying the count of source points it absorbed.
func decimate(points []weightedPoint, width, height int, p Params) []weightedPoint {
	if len(points) <= p.MaxPoints {
		out := make([]weightedPoint, len(points))
		copy(out, points)
		return out
	}
	var reps []weightedPoint
	if p.Decimation == DecimationSkeleton {
		reps = skeletonReps(points, width, height, p.MaxPoints)
	} else {
		reps = kMeans(points, p.MaxPoints)
	}
	return assignWeights(points, reps)
}

// kMeans runs a deterministic Lloyd iteration: centroids seed from evenly
// spaced points in scan order, which makes repeated runs reproducible.
func kMeans(points []weightedPoint, k int) []weightedPoint {
	centroids := make([]weightedPoint, k)
	stride := float64(len(points)) / float64(k)
	for i := range k {
		centroids[i] = points[int(float64(i)*stride)]
	}

	assign := make([]int, len(points))
	const iterations = 10
	for range iterations {
		for i, pt := range points {
			assign[i] = nearest(centroids, pt)
		}
		counts := make([]float64, k)
		sumX := make([]float64, k)
		sumY := make([]float64, k)
		for i, pt := range points {
			c := assign[i]
			counts[c]++
			sumX[c] += pt.x
			sumY[c] += pt.y
		}
		for c := range k {
			if counts[c] == 0 {
				continue // empty cluster keeps its previous centroid
			}
			centroids[c].x = sumX[c] / counts[c]
			centroids[c].y = sumY[c] / counts[c]
		}
	}
	return centroids
}

// skeletonReps thins the rasterized point set to a one-pixel-wide skeleton
// and uses the surviving pixels as representatives, subsampling evenly if
// the skeleton still exceeds maxPoints.
func skeletonReps(points []weightedPoint, width, height, maxPoints int) []weightedPoint {
	grid := make([]bool, width*height)
	for _, pt := range points {
		grid[int(pt.y)*width+int(pt.x)] = true
	}
	thin(grid, width, height)

	reps := make([]weightedPoint, 0, maxPoints)
	for i, on := range grid {
		if on {
			reps = append(reps, weightedPoint{x: float64(i % width), y: float64(i / width)})
		}
	}
	if len(reps) == 0 {
		// Thinning can erase very small blobs entirely; keep one point.
		reps = append(reps, points[0])
	}
	if len(reps) > maxPoints {
		stride := float64(len(reps)) / float64(maxPoints)
		sampled := make([]weightedPoint, maxPoints)
		for i := range maxPoints {
			sampled[i] = reps[int(float64(i)*stride)]
		}
		reps = sampled
	}
	return reps
}

// thin applies Zhang-Suen thinning in place until the raster is stable.
func thin(grid []bool, width, height int) {
	at := func(x, y int) bool {
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
		return grid[y*width+x]
	}
	for {
		changed := false
		for pass := range 2 {
			var kill []int
			for y := range height {
				for x := range width {
					if !at(x, y) {
						continue
					}
					// Neighbors clockwise from north.
					n := [8]bool{
						at(x, y-1), at(x+1, y-1), at(x+1, y), at(x+1, y+1),
						at(x, y+1), at(x-1, y+1), at(x-1, y), at(x-1, y-1),
					}
					count := 0
					for _, v := range n {
						if v {
							count++
						}
					}
					if count < 2 || count > 6 {
						continue
					}
					transitions := 0
					for i := range 8 {
						if !n[i] && n[(i+1)%8] {
							transitions++
						}
					}
					if transitions != 1 {
						continue
					}
					if pass == 0 {
						if (n[0] && n[2] && n[4]) || (n[2] && n[4] && n[6]) {
							continue
						}
					} else {
						if (n[0] && n[2] && n[6]) || (n[0] && n[4] && n[6]) {
							continue
						}
					}
					kill = append(kill, y*width+x)
				}
			}
			for _, i := range kill {
				grid[i] = false
			}
			changed = changed || len(kill) > 0
		}
		if !changed {
			return
		}
	}
}

// assignWeights attributes every source point to its nearest representative.
func assignWeights(points, reps []weightedPoint) []weightedPoint {
	out := make([]weightedPoint, len(reps))
	for i, r := range reps {
		out[i] = weightedPoint{x: r.x, y: r.y}
	}
	for _, pt := range points {
		out[nearest(out, pt)].weight++
	}
	return out
}

func nearest(reps []weightedPoint, pt weightedPoint) int {
	best := 0
	bestDist := math.Inf(1)
	for i, r := range reps {
		d := (r.x-pt.x)*(r.x-pt.x) + (r.y-pt.y)*(r.y-pt.y)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
