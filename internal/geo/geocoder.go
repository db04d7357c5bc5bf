// Package geo resolves coordinates into place names through the external
// geocoding collaborator. It is consulted once per previously-unseen
// location; results are cached in-process because reverse lookups for the
// same coordinates are immutable.
package geo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"skycast.dev/weather-alerts/internal/store"
)

// Resolver turns coordinates into the names a new location row needs.
type Resolver interface {
	Reverse(latitude, longitude float64) (store.Place, error)
}

// ErrNoResult is returned when the collaborator finds nothing at the
// coordinates.
var ErrNoResult = errors.New("geo: no address for coordinates")

// Geocoder resolves coordinates via the Google Geocoding API.
type Geocoder struct {
	mu    sync.Mutex
	cache map[coordKey]store.Place
}

type coordKey struct {
	lat float64
	lon float64
}

// NewGeocoder configures the API key and returns a caching resolver.
func NewGeocoder(apiKey string) *Geocoder {
	geocoder.ApiKey = apiKey
	return &Geocoder{cache: make(map[coordKey]store.Place)}
}

// Reverse looks up the place names for a coordinate pair, consulting the
// cache first.
func (g *Geocoder) Reverse(latitude, longitude float64) (store.Place, error) {
	key := coordKey{lat: latitude, lon: longitude}

	g.mu.Lock()
	if place, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return place, nil
	}
	g.mu.Unlock()

	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  latitude,
		Longitude: longitude,
	})
	if err != nil {
		return store.Place{}, fmt.Errorf("reverse geocode (%f, %f): %w", latitude, longitude, err)
	}
	if len(addresses) == 0 {
		return store.Place{}, ErrNoResult
	}

	place := placeFromAddress(addresses[0])
	if place.Name == "" && place.County == "" {
		return store.Place{}, ErrNoResult
	}

	g.mu.Lock()
	g.cache[key] = place
	g.mu.Unlock()
	return place, nil
}

// placeFromAddress maps the collaborator's address onto the fields the
// location row keeps, falling back between name and county when one of the
// two is missing, the same way the flood loader always has.
func placeFromAddress(addr geocoder.Address) store.Place {
	place := store.Place{
		Name:    addr.City,
		County:  addr.County,
		Country: addr.Country,
	}
	if place.County == "" {
		place.County = addr.State
	}
	if place.Name == "" {
		place.Name = place.County
	}
	if place.County == "" {
		place.County = place.Name
	}
	return place
}
