package features

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
)

// HaversineRadians returns the great-circle distance between two
// latitude/longitude pairs as a central angle on the unit sphere
func HaversineRadians(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2}) / orb.EarthRadius
}

// ApplyDeltas sets the location and time deltas to the previous event of the
// partition. The first event carries the undefined value for both.
func ApplyDeltas(p *Partition) {
	for i := range p.Rows {
		if i == 0 {
			p.Rows[i].LocDelta = model.Null()
			p.Rows[i].TimeDelta = model.Null()
			continue
		}
		prev, cur := p.Rows[i-1], p.Rows[i]
		p.Rows[i].LocDelta = model.Some(HaversineRadians(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude))
		p.Rows[i].TimeDelta = model.Some(float64(cur.Datetime.Sub(prev.Datetime)) / float64(day))
	}
}
