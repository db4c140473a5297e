package app

import (
	"net/http"

	"github.com/cinetix/booking-engine/api"
	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/cinetix/booking-engine/internal/geo"
)

func (app *Application) ListTheatersHandler(w http.ResponseWriter, r *http.Request) {
	params, err := parseTheaterListParams(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	pagination := domain.Pagination{Page: 1, PageSize: 20}
	if params.Page != nil {
		pagination.Page = *params.Page
	}
	if params.PageSize != nil {
		pagination.PageSize = *params.PageSize
	}

	city := ""
	if params.City != nil {
		city = *params.City
	}

	theaters, metadata, err := app.theaterRepo.GetTheatersByCity(r.Context(), city, pagination)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if params.Latitude != nil && params.Longitude != nil {
		geo.SortTheatersByDistance(theaters, *params.Latitude, *params.Longitude)
	}

	resp := api.TheaterListResponse{
		Theaters: make([]api.Theater, 0, len(theaters)),
		Metadata: toMetadata(metadata),
	}

	for _, t := range theaters {
		resp.Theaters = append(resp.Theaters, api.Theater{
			Id:         t.ID,
			Name:       t.Name,
			Address:    t.Address,
			City:       t.City,
			Latitude:   t.Latitude,
			Longitude:  t.Longitude,
			DistanceKm: t.DistanceKm,
		})
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func parseTheaterListParams(r *http.Request) (api.TheaterListParams, error) {
	var params api.TheaterListParams
	var err error

	params.Page, err = readIntQuery(r, "page")
	if err != nil {
		return params, err
	}

	params.PageSize, err = readIntQuery(r, "pageSize")
	if err != nil {
		return params, err
	}

	if city := r.URL.Query().Get("city"); city != "" {
		params.City = &city
	}

	params.Latitude, err = readFloatQuery(r, "latitude")
	if err != nil {
		return params, err
	}

	params.Longitude, err = readFloatQuery(r, "longitude")
	if err != nil {
		return params, err
	}

	return params, nil
}
