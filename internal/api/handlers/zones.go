package handlers

import (
	"net/http"

	"field-route-service/internal/api/dto"
	"field-route-service/internal/kml"
	"field-route-service/internal/services/coordinator"
	"field-route-service/internal/services/kmlload"
)

// ZoneHandler exposes KML files and the zone/map state.
type ZoneHandler struct {
	Loader      *kmlload.Loader
	Coordinator *coordinator.Coordinator
}

func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.Loader.ListAvailable(r.Context())
	if err != nil {
		writeServiceError(w, r, "list zones", err)
		return
	}

	res := dto.ListZonesResponse{Files: make([]dto.ZoneFileResponse, 0, len(files))}
	for _, f := range files {
		res.Files = append(res.Files, dto.ZoneFileResponse{
			Zone:       f.Key.Zone,
			Plan:       f.Key.Plan,
			FileName:   f.FileName,
			Size:       f.Size,
			ModifiedAt: f.ModifiedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, res)
}

// KML loads the zone file (from cache unless force=true) and returns a
// summary of what was parsed.
func (h *ZoneHandler) KML(w http.ResponseWriter, r *http.Request) {
	key, err := zoneParams(r)
	if err != nil {
		writeServiceError(w, r, "load kml", err)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	cached := !force && h.Loader.IsInCache(key)

	res := h.Loader.Load(r.Context(), key, force)
	if !res.Success {
		writeServiceError(w, r, "load kml", res.Err)
		return
	}

	out := dto.KMLSummaryResponse{
		Success:       true,
		Zone:          res.Zone,
		Plan:          res.Plan,
		RouteCount:    res.Metadata.RouteCount,
		TotalPoints:   res.Metadata.TotalPoints,
		FileSizeChars: res.Metadata.FileSizeChars,
		LoadTimeMs:    res.Metadata.LoadTimeMs,
		IsValid:       res.Metadata.IsValid,
		Cached:        cached,
	}
	if res.Document != nil && res.Document.Metadata != nil {
		out.Name = res.Document.Metadata.Name
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *ZoneHandler) Validation(w http.ResponseWriter, r *http.Request) {
	key, err := zoneParams(r)
	if err != nil {
		writeServiceError(w, r, "validate kml", err)
		return
	}
	res, err := h.Loader.Validate(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, "validate kml", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ValidationResponse{
		Zone:       key.Zone,
		Plan:       key.Plan,
		Validation: *res,
		Report:     kml.Report(key.FileName(), *res),
	})
}

// GeoJSON returns the zone's routes as a FeatureCollection.
func (h *ZoneHandler) GeoJSON(w http.ResponseWriter, r *http.Request) {
	key, err := zoneParams(r)
	if err != nil {
		writeServiceError(w, r, "export geojson", err)
		return
	}
	res := h.Loader.Load(r.Context(), key, false)
	if !res.Success {
		writeServiceError(w, r, "export geojson", res.Err)
		return
	}

	body, err := kml.ToGeoJSON(res.Document).MarshalJSON()
	if err != nil {
		writeServiceError(w, r, "export geojson", err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Cached returns the parsed document persisted by the last activation.
func (h *ZoneHandler) Cached(w http.ResponseWriter, r *http.Request) {
	key, err := zoneParams(r)
	if err != nil {
		writeServiceError(w, r, "cached document", err)
		return
	}
	doc, err := h.Coordinator.CachedDocument(r.Context(), key.Zone, string(key.Plan))
	if err != nil {
		writeServiceError(w, r, "cached document", err)
		return
	}
	writeJSON(w, r, http.StatusOK, doc)
}

// Activate makes zone/plan the current map zone.
func (h *ZoneHandler) Activate(w http.ResponseWriter, r *http.Request) {
	key, err := zoneParams(r)
	if err != nil {
		writeServiceError(w, r, "activate zone", err)
		return
	}
	res := h.Coordinator.LoadZone(r.Context(), key.Zone, string(key.Plan))
	if !res.Success {
		writeServiceError(w, r, "activate zone", res.Err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
