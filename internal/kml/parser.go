package kml

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
)

const defaultRouteName = "Percorso Sconosciuto"

var (
	zonePattern    = regexp.MustCompile(`(?i)Zona\s*(\d+)`)
	subzonePattern = regexp.MustCompile(`(?i)Sottozona\s*([AB])`)
	nonAlnum       = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// ParseError reports a document that cannot be used at all: empty input,
// malformed XML, or a missing kml/Document root. Defects inside single
// placemarks never produce a ParseError.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse kml: %s: %v", e.Reason, e.Err)
	}
	return "parse kml: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser turns raw KML text into a ParsedDocument.
type Parser struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// NewParser returns a Parser logging to logger (slog.Default when nil).
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{Logger: logger, Now: time.Now}
}

// Parse is a convenience wrapper around a default Parser.
func Parse(raw string) (*domain.ParsedDocument, error) {
	return NewParser(nil).Parse(raw)
}

func (p *Parser) Parse(raw string) (*domain.ParsedDocument, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Reason: "empty content"}
	}

	f, err := decodeFile(raw)
	if err != nil {
		return nil, &ParseError{Reason: "malformed xml", Err: err}
	}
	if f.XMLName.Local != "kml" {
		return nil, &ParseError{Reason: fmt.Sprintf("root element is <%s>, want <kml>", f.XMLName.Local)}
	}
	if f.Document == nil {
		return nil, &ParseError{Reason: "missing Document"}
	}

	doc := f.Document
	meta := &domain.DocumentMetadata{
		Name:        strings.TrimSpace(doc.Name),
		Description: strings.TrimSpace(doc.Description),
	}
	if meta.Name == "" {
		meta.Name = defaultRouteName
	}
	meta.Zone, meta.Subzone = zoneFromName(meta.Name)

	var zone int
	if meta.Zone != nil {
		zone = *meta.Zone
	}

	placemarks := doc.placemarks()
	routes := make([]*domain.Route, 0, len(placemarks))
	for i := range placemarks {
		pm := &placemarks[i]
		if pm.LineString == nil || strings.TrimSpace(pm.LineString.Coordinates) == "" {
			continue
		}
		if r := p.parseRoute(pm, zone); r != nil {
			routes = append(routes, r)
		}
	}

	return &domain.ParsedDocument{
		Metadata: meta,
		Routes:   routes,
		Stops:    extractStops(doc),
	}, nil
}

func (p *Parser) parseRoute(pm *kmlPlacemark, zone int) *domain.Route {
	name := strings.TrimSpace(pm.Name)
	if name == "" {
		name = defaultRouteName
	}

	path := geo.ParseCoordinateBlock(pm.LineString.Coordinates)
	if len(path) < 2 {
		p.Logger.Warn("skipping route with fewer than 2 valid points", "name", name, "points", len(path))
		return nil
	}

	return &domain.Route{
		ID:          p.routeID(name, len(path)),
		Name:        name,
		Path:        path,
		PointCount:  len(path),
		Style:       strings.TrimSpace(pm.StyleURL),
		Description: strings.TrimSpace(pm.Description),
		Zone:        zone,
	}
}

// routeID builds slug(name)_pointCount_unixMillis.
func (p *Parser) routeID(name string, points int) string {
	slug := strings.ToLower(nonAlnum.ReplaceAllString(name, ""))
	return fmt.Sprintf("%s_%d_%d", slug, points, p.Now().UnixMilli())
}

// extractStops is reserved for KML point support; the provisioned files
// carry no stops yet.
func extractStops(*kmlDocument) []*domain.Stop {
	return []*domain.Stop{}
}

func zoneFromName(name string) (*int, *domain.Plan) {
	var zone *int
	var plan *domain.Plan

	if m := zonePattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			zone = &n
		}
	}
	if m := subzonePattern.FindStringSubmatch(name); m != nil {
		p := domain.Plan(strings.ToUpper(m[1]))
		plan = &p
	}

	return zone, plan
}
