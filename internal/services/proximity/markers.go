package proximity

import (
	"fmt"

	"field-route-service/internal/domain"
)

const DefaultMarkerColor = "#FFD800"

type MarkerOptions struct {
	Color     string
	ShowLabel bool
}

// Marker is a render-ready projection of a visible stop.
type Marker struct {
	ID          string  `json:"id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	Distance    int     `json:"distance"`
	IsManual    bool    `json:"is_manual"`
	Label       string  `json:"label,omitempty"`
}

func NewMarker(v domain.MarkerView, opts MarkerOptions) Marker {
	color := opts.Color
	if color == "" {
		color = DefaultMarkerColor
	}

	m := Marker{
		ID:          v.Stop.ID,
		Latitude:    v.Stop.Latitude,
		Longitude:   v.Stop.Longitude,
		Title:       v.Stop.Name,
		Description: v.Stop.Description,
		Color:       color,
		Distance:    v.Distance,
		IsManual:    v.Stop.IsManual,
	}
	if m.Description == "" {
		m.Description = fmt.Sprintf("%s (%s)", v.Stop.Name, FormatDistance(float64(v.Distance)))
	}
	if opts.ShowLabel {
		m.Label = FormatDistance(float64(v.Distance))
	}
	return m
}

func NewMarkers(visible []domain.MarkerView, opts MarkerOptions) []Marker {
	out := make([]Marker, 0, len(visible))
	for _, v := range visible {
		if v.Stop == nil {
			continue
		}
		out = append(out, NewMarker(v, opts))
	}
	return out
}
