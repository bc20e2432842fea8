package metadata

import (
	"path/filepath"
	"strings"

	"github.com/laav10/astro-ingester/internal/constants"
)

// Footprint is the sky area covered by a frame, as a GeoJSON polygon.
type Footprint struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// DefaultFootprint returns the placeholder area registered for every frame.
func DefaultFootprint() Footprint {
	return NewFootprint([][2]float64{
		{123.40, 67.84},
		{123.50, 67.84},
		{123.50, 67.94},
		{123.40, 67.94},
		{123.40, 67.84},
	})
}

// NewFootprint returns a polygon footprint with a single ring of (ra, dec) vertices.
func NewFootprint(ring [][2]float64) Footprint {
	return Footprint{
		Type:        "Polygon",
		Coordinates: [][][2]float64{ring},
	}
}

// Version identifies one stored copy of a frame.
type Version struct {
	MD5       string `json:"md5"`
	Key       string `json:"key"`
	Extension string `json:"extension"`
}

// Payload is the frame description registered with the science archive.
type Payload struct {
	Basename       string  `json:"basename"`
	DayObs         string  `json:"DAY_OBS"`
	DateObs        string  `json:"DATE_OBS"`
	ProposalID     string  `json:"PROPID"`
	Instrument     string  `json:"INSTRUME"`
	Object         string  `json:"OBJECT"`
	ReductionLevel int     `json:"RLEVEL"`
	SiteID         string  `json:"SITEID"`
	TelescopeID    string  `json:"TELID"`
	ExposureTime   float64 `json:"EXPTIME"`
	Filter         string  `json:"FILTER"`
	L1PubDate      string  `json:"L1PUBDAT"`
	ObsType        string  `json:"OBSTYPE"`
	BlockUID       int     `json:"BLKUID"`
	RequestNumber  int     `json:"REQNUM"`
	Observer       string  `json:"OBSERVER"`

	Area                  Footprint      `json:"area"`
	Headers               map[string]any `json:"headers"`
	VersionSet            []Version      `json:"version_set"`
	RelatedFrameFilenames []string       `json:"related_frame_filenames"`
}

// NewPayload builds the archive payload of the frame stored at path.
//
// The basename comes from the observation "basename" field when set, otherwise from the file name
// without its extension. The object key is the file name.
func NewPayload(path string, obs Observation, fs FieldSet, md5 string, area Footprint) Payload {
	key := filepath.Base(path)
	ext := filepath.Ext(key)
	if ext == "" {
		ext = constants.DefaultExtension
	}

	basename := strings.TrimSuffix(key, filepath.Ext(key))
	if b, ok := obs["basename"].(string); ok && b != "" {
		basename = b
	}

	return Payload{
		Basename:       basename,
		DayObs:         fs.DayObs,
		DateObs:        fs.DateObs,
		ProposalID:     fs.ProposalID,
		Instrument:     fs.Instrument,
		Object:         fs.Object,
		ReductionLevel: fs.ReductionLevel,
		SiteID:         fs.SiteID,
		TelescopeID:    fs.TelescopeID,
		ExposureTime:   fs.ExposureTime,
		Filter:         fs.Filter,
		L1PubDate:      fs.L1PubDate,
		ObsType:        fs.ObsType,
		BlockUID:       fs.BlockUID,
		RequestNumber:  fs.RequestNumber,
		Observer:       fs.Observer,

		Area:    area,
		Headers: fs.Headers(),
		VersionSet: []Version{{
			MD5:       md5,
			Key:       key,
			Extension: ext,
		}},
		RelatedFrameFilenames: []string{},
	}
}
