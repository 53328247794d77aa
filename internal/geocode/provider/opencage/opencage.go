// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package opencage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/ufobeep/internal/geocode"
	"github.com/wneessen/ufobeep/internal/geomath"
	"github.com/wneessen/ufobeep/internal/http"
)

const (
	APIEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	APITimeout  = time.Second * 10
	name        = "opencage"
)

var ErrMissingAPIKey = errors.New("an API key is required for the OpenCage geocoder")

type OpenCage struct {
	apikey string
	http   *http.Client
	lang   language.Tag
}

type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
	Status       Status   `json:"status"`
}

type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	Components  Components `json:"components"`
	DisplayName string     `json:"formatted"`
	Geometry    Geometry   `json:"geometry"`
}

type Components struct {
	NormalizedCity string `json:"_normalized_city"`
	City           string `json:"city"`
	CityDistrict   string `json:"city_district"`
	Country        string `json:"country"`
	CountryCode    string `json:"country_code"`
	HouseNumber    string `json:"house_number"`
	Municipality   string `json:"municipality"`
	Postcode       string `json:"postcode"`
	Road           string `json:"road"`
	State          string `json:"state"`
	Suburb         string `json:"suburb"`
	Town           string `json:"town"`
	Village        string `json:"village"`
}

type Geometry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

func New(client *http.Client, lang language.Tag, apikey string) (*OpenCage, error) {
	if apikey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenCage{
		apikey: apikey,
		lang:   lang,
		http:   client,
	}, nil
}

func (o *OpenCage) Name() string {
	return name
}

// Reverse looks up the address of coord. If OpenCage returns more than one result, the best
// ranked one is used.
func (o *OpenCage) Reverse(ctx context.Context, coord geomath.Coordinate) (geocode.Address, error) {
	var response Response

	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", strconv.FormatFloat(coord.Lat, 'f', -1, 64)+","+strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("limit", "1")
	query.Set("language", o.lang.String())

	if _, err := o.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to retrieve address details from OpenCage API: %w", err)
	}
	if response.Status.Code != 0 && response.Status.Code != 200 {
		return geocode.Address{}, fmt.Errorf("OpenCage API returned status %d: %s", response.Status.Code,
			response.Status.Message)
	}
	if response.TotalResults < 1 || len(response.Results) < 1 {
		return geocode.Address{Latitude: coord.Lat, Longitude: coord.Lon}, nil
	}

	result := response.Results[0]
	components := result.Components
	address := geocode.Address{
		AddressFound: true,
		Latitude:     result.Geometry.Lat,
		Longitude:    result.Geometry.Lon,
		DisplayName:  result.DisplayName,
		Country:      components.Country,
		CountryCode:  components.CountryCode,
		State:        components.State,
		Municipality: components.Municipality,
		CityDistrict: components.CityDistrict,
		Postcode:     components.Postcode,
		City:         components.NormalizedCity,
		Suburb:       components.Suburb,
		Street:       components.Road,
		HouseNumber:  components.HouseNumber,
	}
	for _, city := range []string{components.City, components.Town, components.Village} {
		if address.City == "" && city != "" {
			address.City = city
		}
	}

	return address, nil
}
