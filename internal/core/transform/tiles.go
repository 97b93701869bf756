package transform

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// CoveringTiles returns the tiles at zoom z that intersect the viewport,
// nearest to the center first, at most limit of them (no limit when
// limit <= 0). With world copies on, x wraps around the antimeridian;
// otherwise tiles outside the world are skipped.
func (t *Transform) CoveringTiles(z int, limit int) maptile.Tiles {
	if t.width == 0 || t.height == 0 || z < 0 {
		return nil
	}
	zoom := maptile.Zoom(z)
	n := 1 << uint(z)

	corners := []domain.Point{{}, {X: t.width}, {X: t.width, Y: t.height}, {Y: t.height}}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		ll := t.PointLocation(c)
		f := maptile.Fraction(orb.Point{ll.Lng, ll.Lat}, zoom)
		minX, maxX = math.Min(minX, f[0]), math.Max(maxX, f[0])
		minY, maxY = math.Min(minY, f[1]), math.Max(maxY, f[1])
	}
	center := maptile.Fraction(orb.Point{t.center.Lng, t.center.Lat}, zoom)

	type candidate struct {
		tile maptile.Tile
		dist float64
	}
	var found []candidate
	seen := make(map[maptile.Tile]bool)

	y0 := max(int(math.Floor(minY)), 0)
	y1 := min(int(math.Floor(maxY)), n-1)
	for y := y0; y <= y1; y++ {
		for x := int(math.Floor(minX)); x <= int(math.Floor(maxX)); x++ {
			wx := x
			if wx < 0 || wx >= n {
				if !t.renderWorldCopies {
					continue
				}
				wx = ((x % n) + n) % n
			}
			tile := maptile.New(uint32(wx), uint32(y), zoom)
			if seen[tile] {
				continue
			}
			seen[tile] = true
			dx := float64(x) + 0.5 - center[0]
			dy := float64(y) + 0.5 - center[1]
			found = append(found, candidate{tile: tile, dist: dx*dx + dy*dy})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	tiles := make(maptile.Tiles, len(found))
	for i, c := range found {
		tiles[i] = c.tile
	}
	return tiles
}
