package protocol

// DefaultViewport is the side of the square window sent to a client
const DefaultViewport = 1000.0

func within(p, center Point, half float64) bool {
	return p.X >= center.X-half && p.X <= center.X+half &&
		p.Y >= center.Y-half && p.Y <= center.Y+half
}

func cull[T Entity](in []T, center Point, half float64) []T {
	out := make([]T, 0, len(in)/4)
	for _, e := range in {
		if within(e.Position(), center, half) {
			out = append(out, e)
		}
	}
	return out
}

// Cull keeps only the entities inside the square of side viewport centred on center.
// A non-positive viewport uses DefaultViewport.
func Cull(s Snapshot, center Point, viewport float64) Snapshot {
	if viewport <= 0 {
		viewport = DefaultViewport
	}
	half := viewport / 2
	return Snapshot{
		Cells:   cull(s.Cells, center, half),
		Food:    cull(s.Food, center, half),
		Viruses: cull(s.Viruses, center, half),
		Ejected: cull(s.Ejected, center, half),
	}
}
