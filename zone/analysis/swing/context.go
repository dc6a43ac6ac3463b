package swing

// Context is the global swing index used by swing_scope=global: the full
// series' swing points, computed once, sliced per zone with neighbor
// awareness so a swing leg that starts before a zone and ends inside it
// (or vice versa) is still visible to that zone's metrics.
type Context struct {
	Points []SwingPoint
	Name   string
	Params map[string]any
}

// NewContext builds a Context from a full-series swing point sequence.
func NewContext(points []SwingPoint, name string, params map[string]any) *Context {
	return &Context{Points: points, Name: name, Params: params}
}

// Slice returns the swing points overlapping [startIdx, endIdx], plus one
// neighbor point on each side when available, so legs that cross a zone
// boundary are represented by both their endpoints.
func (c *Context) Slice(startIdx, endIdx int) []SwingPoint {
	if c == nil || len(c.Points) == 0 {
		return nil
	}
	firstInside, lastInside := -1, -1
	for i, p := range c.Points {
		if p.Idx >= startIdx && p.Idx <= endIdx {
			if firstInside == -1 {
				firstInside = i
			}
			lastInside = i
		}
	}
	if firstInside == -1 {
		return nil
	}
	lo := firstInside
	if lo > 0 {
		lo--
	}
	hi := lastInside
	if hi < len(c.Points)-1 {
		hi++
	}
	out := make([]SwingPoint, hi-lo+1)
	copy(out, c.Points[lo:hi+1])
	return out
}

// Metrics computes the universal swing record from the zone's overlapping
// slice of the global swing index.
func (c *Context) Metrics(startIdx, endIdx int, minAmplitudePct float64) Metrics {
	points := c.Slice(startIdx, endIdx)
	return FromPoints(points, c.Name, c.Params, minAmplitudePct)
}
