package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// XML shapes for the subset of KML we read. Coordinates stay as raw
// strings so the domain splitter decides what a valid tuple is.
// Repeated elements decode into slices, so a lone Placemark and a list
// of them look the same to the caller.
type kmlFile struct {
	XMLName  xml.Name
	Document *kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Folders     []kmlFolder    `xml:"Folder"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	StyleURL    string         `xml:"styleUrl"`
	LineString  *kmlLineString `xml:"LineString"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

// placemarks returns folder placemarks first, then the ones placed directly
// under Document.
func (d *kmlDocument) placemarks() []kmlPlacemark {
	out := make([]kmlPlacemark, 0, len(d.Placemarks))
	for _, f := range d.Folders {
		out = append(out, f.Placemarks...)
	}
	return append(out, d.Placemarks...)
}

func decodeFile(raw string) (*kmlFile, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	// Hand-edited KML frequently carries HTML entities in descriptions.
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader

	var f kmlFile
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}
