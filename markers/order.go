// Package markers orders an unordered set of blob-detected marker centres
// into a 1D chain consistent with the previous frame's head orientation
// (spec §4.3).
package markers

import "math"

// Point is a 3D marker centre, metres, in the camera frame.
type Point [3]float64

func (p Point) sub(o Point) Point {
	return Point{p[0] - o[0], p[1] - o[1], p[2] - o[2]}
}

func (p Point) dot(o Point) float64 {
	return p[0]*o[0] + p[1]*o[1] + p[2]*o[2]
}

func distSq(a, b Point) float64 {
	d := a.sub(b)
	return d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
}

func dist(a, b Point) float64 {
	return math.Sqrt(distSq(a, b))
}

// ErrChainBreak is returned when the opposite-closest search fails
// mid-chain (spec §7 "marker-chain-break").
type ErrChainBreak struct{ At int }

func (e *ErrChainBreak) Error() string {
	return "markers: opposite-closest search failed extending the chain"
}

// findClosest returns the index in pts nearest to pt.
func findClosest(pt Point, pts []Point) int {
	best := 0
	bestD := distSq(pt, pts[0])
	for i := 1; i < len(pts); i++ {
		if d := distSq(pt, pts[i]); d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

// findOppositeClosest returns the index in pts nearest to pt that also
// lies on the opposite side of pt from directionPt (negative dot product)
// and within guard metres of pt, per spec §4.3. It tries candidates from
// nearest to farthest until one satisfies the direction constraint.
func findOppositeClosest(pt Point, pts []Point, directionPt Point, guard float64) (idx int, found bool) {
	remaining := make([]int, len(pts))
	for i := range remaining {
		remaining[i] = i
	}
	guardSq := guard * guard

	for len(remaining) > 0 {
		// Find nearest among remaining.
		best := 0
		bestD := distSq(pt, pts[remaining[0]])
		for k := 1; k < len(remaining); k++ {
			if d := distSq(pt, pts[remaining[k]]); d < bestD {
				bestD = d
				best = k
			}
		}
		cand := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)

		v1 := pts[cand].sub(pt)
		v2 := directionPt.sub(pt)
		if v1.dot(v2) < 0 && distSq(pts[cand], pt) < guardSq {
			return cand, true
		}
	}
	return 0, false
}

// Order sorts an unordered marker set into a chain. It picks pts[0] as the
// seed, finds its nearest neighbour, then the seed's opposite-closest
// neighbour (if any) to determine whether the seed is a true chain
// endpoint or an interior point, and extends outward from both directions
// using the same opposite-side rule (spec §4.3 "Algorithm").
func Order(pts []Point, guard float64) ([]Point, error) {
	if len(pts) == 0 {
		return nil, nil
	}
	if len(pts) == 1 {
		return []Point{pts[0]}, nil
	}

	remaining := append([]Point(nil), pts[1:]...)
	seed := pts[0]

	c1idx := findClosest(seed, remaining)
	closest1 := remaining[c1idx]
	remaining = append(remaining[:c1idx:c1idx], remaining[c1idx+1:]...)

	closest2, foundOpposite := findOppositeClosest(seed, remaining, closest1, guard)
	var closest2Pt Point
	if foundOpposite {
		closest2Pt = remaining[closest2]
	}

	chain := []Point{seed, closest1}

	for len(remaining) > 0 {
		target := chain[len(chain)-1]
		direction := chain[len(chain)-2]
		idx, found := findOppositeClosest(target, remaining, direction, guard)
		if !found {
			// Exhausting this direction is expected when the seed was an
			// interior point: the rest of the chain lies on the other
			// side and gets picked up by the front-extension loop below.
			break
		}
		chain = append(chain, remaining[idx])
		remaining = append(remaining[:idx:idx], remaining[idx+1:]...)
	}

	if foundOpposite {
		// Remove closest2 from remaining (it was found against the
		// pre-extension remaining set; locate it by value).
		for i, p := range remaining {
			if p == closest2Pt {
				remaining = append(remaining[:i:i], remaining[i+1:]...)
				break
			}
		}
		chain = append([]Point{closest2Pt}, chain...)

		for len(remaining) > 0 {
			target := chain[0]
			direction := chain[1]
			idx, found := findOppositeClosest(target, remaining, direction, guard)
			if !found {
				break
			}
			chain = append([]Point{remaining[idx]}, chain...)
			remaining = append(remaining[:idx:idx], remaining[idx+1:]...)
		}
	}

	// A genuine break is any point neither extension direction could place.
	if len(remaining) > 0 {
		return chain, &ErrChainBreak{At: len(chain)}
	}
	return chain, nil
}

// Reconcile reverses chain if its last element is within threshold of the
// previous frame's head anchor, and returns the (possibly reversed) chain
// along with the new head anchor to carry forward (spec §4.3 "Orientation
// reconciliation"). When head is nil (no prior frame), the chain is
// returned unchanged with chain[0] as the new head.
func Reconcile(chain []Point, head *Point, threshold float64) (ordered []Point, newHead Point) {
	if len(chain) == 0 {
		return chain, Point{}
	}
	if head != nil && dist(*head, chain[len(chain)-1]) < threshold {
		ordered = make([]Point, len(chain))
		for i, p := range chain {
			ordered[len(chain)-1-i] = p
		}
		return ordered, ordered[0]
	}
	return chain, chain[0]
}
