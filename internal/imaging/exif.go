package imaging

import (
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// Metadata is the capture information found in a photo's EXIF block.
// Fields are empty when the tag is absent.
type Metadata struct {
	CapturedAt string `json:"capturedAt,omitempty"`
	Latitude   string `json:"latitude,omitempty"`
	Longitude  string `json:"longitude,omitempty"`
	Camera     string `json:"camera,omitempty"`
}

// HasGPS reports whether both coordinates were recorded.
func (m Metadata) HasGPS() bool {
	return m.Latitude != "" && m.Longitude != ""
}

// ExtractMetadata reads EXIF tags from raw image bytes. Images without EXIF
// yield a zero Metadata.
func ExtractMetadata(data []byte) Metadata {
	var m Metadata

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return m
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return m
	}

	var latRef, lonRef, camMake, camModel string
	for _, entry := range entries {
		value := strings.TrimSpace(entry.Formatted)
		switch entry.TagName {
		case "DateTimeOriginal":
			m.CapturedAt = value
		case "DateTime":
			if m.CapturedAt == "" {
				m.CapturedAt = value
			}
		case "GPSLatitude":
			m.Latitude = value
		case "GPSLatitudeRef":
			latRef = value
		case "GPSLongitude":
			m.Longitude = value
		case "GPSLongitudeRef":
			lonRef = value
		case "Make":
			camMake = value
		case "Model":
			camModel = value
		}
	}

	if m.Latitude != "" && latRef != "" {
		m.Latitude += " " + latRef
	}
	if m.Longitude != "" && lonRef != "" {
		m.Longitude += " " + lonRef
	}
	m.Camera = strings.TrimSpace(camMake + " " + camModel)
	return m
}
