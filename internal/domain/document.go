package domain

// Document-level metadata. Zone and Subzone are extracted from the
// document name when it follows the "Zona N Sottozona X" convention.
type DocumentMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Zone        *int   `json:"zone"`
	Subzone     *Plan  `json:"subzone"`
}

// Structured result of parsing one KML file.
type ParsedDocument struct {
	Metadata *DocumentMetadata `json:"metadata"`
	Routes   []*Route          `json:"routes"`
	// Stops is reserved for KML point extraction and is currently always empty.
	Stops []*Stop `json:"stops"`
}

// TotalPoints sums path lengths over all routes.
func (d *ParsedDocument) TotalPoints() int {
	total := 0
	for _, r := range d.Routes {
		if r != nil {
			total += len(r.Path)
		}
	}
	return total
}

type ValidationStats struct {
	RouteCount            int `json:"route_count"`
	ValidRoutes           int `json:"valid_routes"`
	TotalPoints           int `json:"total_points"`
	AveragePointsPerRoute int `json:"average_points_per_route"`
	StopCount             int `json:"stop_count"`
}

// Outcome of validating a ParsedDocument. IsValid is true iff Errors is empty.
type ValidationResult struct {
	IsValid  bool            `json:"is_valid"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Stats    ValidationStats `json:"stats"`
}

type RouteValidationStats struct {
	PointCount  int `json:"point_count"`
	ValidPoints int `json:"valid_points"`
}

// Outcome of validating a single route in isolation.
type RouteValidationResult struct {
	IsValid  bool                 `json:"is_valid"`
	Errors   []string             `json:"errors"`
	Warnings []string             `json:"warnings"`
	Stats    RouteValidationStats `json:"stats"`
}
