package places

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/paulmach/orb"

	"github.com/contato-rede/leads/internal/model"
)

// Number decodes a JSON number, a numeric string or null. A string that is not
// a number decodes to NaN so filters can tell it apart from a missing value.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(model.ParseRating(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*n = Number(math.NaN())
		return nil
	}
	*n = Number(f)
	return nil
}

// Hit is one text search result.
type Hit struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Rating           Number   `json:"rating"`
	UserRatingsTotal Number   `json:"user_ratings_total"`
	Types            []string `json:"types"`
	Geometry         Geometry `json:"geometry"`
}

// Geometry carries the position of a hit. Location is nil when upstream omitted it.
type Geometry struct {
	Location *LatLng `json:"location"`
}

// Point returns the hit's position, or false when it has none.
func (h Hit) Point() (orb.Point, bool) {
	if h.Geometry.Location == nil {
		return orb.Point{}, false
	}
	return h.Geometry.Location.Point(), true
}

// Details is the subset of a place details record the enricher asks for.
type Details struct {
	Name                 string   `json:"name"`
	FormattedPhoneNumber string   `json:"formatted_phone_number"`
	Website              string   `json:"website"`
	FormattedAddress     string   `json:"formatted_address"`
	Rating               Number   `json:"rating"`
	UserRatingsTotal     Number   `json:"user_ratings_total"`
	Types                []string `json:"types"`
}

type searchResponse struct {
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
	Results       []Hit  `json:"results"`
	NextPageToken string `json:"next_page_token"`
}

type detailsResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Result       Details `json:"result"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) Point() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location LatLng `json:"location"`
			Viewport *struct {
				Northeast LatLng `json:"northeast"`
				Southwest LatLng `json:"southwest"`
			} `json:"viewport"`
		} `json:"geometry"`
	} `json:"results"`
}
