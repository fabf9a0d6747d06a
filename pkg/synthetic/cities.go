package synthetic

// City is a location transactions and profiles can be placed in
type City struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// Cities is the static location table used by the generator
var Cities = []City{
	{"New York", "US", 40.7128, -74.0060},
	{"Los Angeles", "US", 34.0522, -118.2437},
	{"Chicago", "US", 41.8781, -87.6298},
	{"Houston", "US", 29.7604, -95.3698},
	{"Phoenix", "US", 33.4484, -112.0740},
	{"Philadelphia", "US", 39.9526, -75.1652},
	{"San Antonio", "US", 29.4241, -98.4936},
	{"San Diego", "US", 32.7157, -117.1611},
	{"Dallas", "US", 32.7767, -96.7970},
	{"San Jose", "US", 37.3382, -121.8863},
	{"Austin", "US", 30.2672, -97.7431},
	{"Jacksonville", "US", 30.3322, -81.6557},
	{"Columbus", "US", 39.9612, -82.9988},
	{"Charlotte", "US", 35.2271, -80.8431},
	{"Indianapolis", "US", 39.7684, -86.1581},
	{"Seattle", "US", 47.6062, -122.3321},
	{"Denver", "US", 39.7392, -104.9903},
	{"Boston", "US", 42.3601, -71.0589},
	{"Nashville", "US", 36.1627, -86.7816},
	{"Portland", "US", 45.5152, -122.6784},
	{"Las Vegas", "US", 36.1699, -115.1398},
	{"Detroit", "US", 42.3314, -83.0458},
	{"Memphis", "US", 35.1495, -90.0490},
	{"Atlanta", "US", 33.7490, -84.3880},
	{"Miami", "US", 25.7617, -80.1918},
	{"Minneapolis", "US", 44.9778, -93.2650},
	{"New Orleans", "US", 29.9511, -90.0715},
	{"Toronto", "CA", 43.6532, -79.3832},
	{"Vancouver", "CA", 49.2827, -123.1207},
	{"Mexico City", "MX", 19.4326, -99.1332},
	{"London", "GB", 51.5074, -0.1278},
	{"Paris", "FR", 48.8566, 2.3522},
	{"Berlin", "DE", 52.5200, 13.4050},
	{"Stockholm", "SE", 59.3293, 18.0686},
	{"Madrid", "ES", 40.4168, -3.7038},
	{"Lagos", "NG", 6.5244, 3.3792},
	{"Mumbai", "IN", 19.0760, 72.8777},
	{"Singapore", "SG", 1.3521, 103.8198},
	{"Tokyo", "JP", 35.6762, 139.6503},
	{"Sydney", "AU", -33.8688, 151.2093},
	{"Sao Paulo", "BR", -23.5505, -46.6333},
}
