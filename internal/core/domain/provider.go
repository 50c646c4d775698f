package domain

// NearbyQuery is one page request against the nearby-search endpoint.
type NearbyQuery struct {
	Lat          float64
	Lon          float64
	RadiusMeters int
	Type         string
	Keyword      string
	PageToken    string
}

// NearbyResult is a single provider hit.
type NearbyResult struct {
	PlaceID        string
	Name           string
	Lat            float64
	Lon            float64
	Vicinity       string
	Rating         float64
	PhotoReference string
}

// NearbyPage is one page of nearby-search results.
type NearbyPage struct {
	Results       []NearbyResult
	NextPageToken string
}

// FindPlaceQuery resolves a provider place id from a name and a location bias.
type FindPlaceQuery struct {
	Name         string
	Lat          float64
	Lon          float64
	RadiusMeters int
}

// FindPlaceCandidate is a find-place hit.
type FindPlaceCandidate struct {
	PlaceID string
	Name    string
	Lat     float64
	Lon     float64
}

// PlaceDetails is the detail payload of a provider place.
type PlaceDetails struct {
	PlaceID      string
	Rating       *float64
	TotalRatings int
	Phone        string
	Website      string
	OpeningHours []string
	PriceLevel   *int
	Photos       []PhotoDescriptor
}

// ReverseAddress is the address breakdown returned by reverse geocoding.
type ReverseAddress struct {
	City          string
	Town          string
	Village       string
	Municipality  string
	State         string
	Country       string
	Suburb        string
	Neighbourhood string
}

// Locality returns the first non-empty of city, town, village, municipality.
func (a ReverseAddress) Locality() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.Municipality} {
		if v != "" {
			return v
		}
	}
	return ""
}

// District returns suburb, falling back to neighbourhood.
func (a ReverseAddress) District() string {
	if a.Suburb != "" {
		return a.Suburb
	}
	return a.Neighbourhood
}
