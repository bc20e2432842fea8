// Package metadata builds the canonical description of a frame.
// It merges the observation metadata supplied by the instrument with the raw header fields of the file,
// and prepares the payload registered with the science archive.
package metadata

import (
	"errors"
	"fmt"

	"github.com/astrogo/fitsio"
	"github.com/go-viper/mapstructure/v2"
)

// Observation describes the scientific context of an exposure, keyed by field name.
type Observation map[string]any

// RawHeader holds header fields extracted from, or intended for, the file, keyed by keyword.
type RawHeader map[string]any

// ErrInvalidField is returned when a merged value cannot be represented by the field type.
var ErrInvalidField = errors.New("invalid field value")

// FieldSet is the canonical set of header fields of a frame.
// Every recognized keyword always has a value.
type FieldSet struct {
	Simple         bool    `fits:"SIMPLE"`
	Bitpix         int     `fits:"BITPIX"`
	Naxis          int     `fits:"NAXIS"`
	Naxis1         int     `fits:"NAXIS1"`
	Naxis2         int     `fits:"NAXIS2"`
	Object         string  `fits:"OBJECT"`
	Telescope      string  `fits:"TELESCOP"`
	Instrument     string  `fits:"INSTRUME"`
	Filter         string  `fits:"FILTER"`
	ExposureTime   float64 `fits:"EXPTIME"`
	DateObs        string  `fits:"DATE-OBS"`
	RA             float64 `fits:"RA"`
	Dec            float64 `fits:"DEC"`
	Airmass        float64 `fits:"AIRMASS"`
	ProposalID     string  `fits:"PROPID"`
	SiteID         string  `fits:"SITEID"`
	TelescopeID    string  `fits:"TELID"`
	ObsType        string  `fits:"OBSTYPE"`
	RequestNumber  int     `fits:"REQNUM"`
	BlockUID       int     `fits:"BLKUID"`
	ReductionLevel int     `fits:"RLEVEL"`
	Observer       string  `fits:"OBSERVER"`
	DayObs         string  `fits:"DAY_OBS"`
	L1PubDate      string  `fits:"L1PUBDAT"`
}

// field is a recognized keyword, the key it is looked up under in the observation, and its default.
type field struct {
	keyword string
	obsKey  string
	def     any
}

// fields lists the recognized keywords in header order.
var fields = []field{
	{"SIMPLE", "SIMPLE", true},
	{"BITPIX", "BITPIX", -32},
	{"NAXIS", "NAXIS", 2},
	{"NAXIS1", "NAXIS1", 1024},
	{"NAXIS2", "NAXIS2", 1024},
	{"OBJECT", "OBJECT", "Unknown"},
	{"TELESCOP", "TELESCOP", "1.2m"},
	{"INSTRUME", "INSTRUME", "Unknown"},
	{"FILTER", "FILTER", "Unknown"},
	{"EXPTIME", "EXPTIME", 0.0},
	{"DATE-OBS", "DATE_OBS", ""},
	{"RA", "RA", 123.45},
	{"DEC", "DEC", 67.89},
	{"AIRMASS", "AIRMASS", 1.34},
	{"PROPID", "PROPID", "Unknown"},
	{"SITEID", "SITEID", "Unknown"},
	{"TELID", "TELID", "Unknown"},
	{"OBSTYPE", "OBSTYPE", "Unknown"},
	{"REQNUM", "REQNUM", 1},
	{"BLKUID", "BLKUID", 1},
	{"RLEVEL", "RLEVEL", 0},
	{"OBSERVER", "OBSERVER", "Unknown"},
	{"DAY_OBS", "DAY_OBS", ""},
	{"L1PUBDAT", "L1PUBDAT", ""},
}

// Keywords returns the recognized header keywords in header order.
func Keywords() []string {
	kws := make([]string, 0, len(fields))
	for _, f := range fields {
		kws = append(kws, f.keyword)
	}
	return kws
}

// Defaults returns the field set used when neither input provides any field.
func Defaults() FieldSet {
	fs, err := Merge(nil, nil)
	if err != nil {
		panic(fmt.Sprintf("default field set does not decode: %v", err))
	}
	return fs
}

// Merge resolves every recognized keyword from the observation first, then the raw header,
// then the keyword default.
// Only presence matters: a key holding a zero value still wins over the next source.
// Values are coerced to the field type, so "60" is accepted for an exposure time.
func Merge(obs Observation, hdr RawHeader) (FieldSet, error) {
	merged := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := obs[f.obsKey]; ok {
			merged[f.keyword] = v
			continue
		}
		if v, ok := hdr[f.keyword]; ok {
			merged[f.keyword] = v
			continue
		}
		merged[f.keyword] = f.def
	}

	var fs FieldSet
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "fits",
		WeaklyTypedInput: true,
		Result:           &fs,
	})
	if err != nil {
		return FieldSet{}, fmt.Errorf("could not create field decoder: %v", err)
	}
	if err := dec.Decode(merged); err != nil {
		return FieldSet{}, errors.Join(ErrInvalidField, err)
	}

	return fs, nil
}

// Cards returns the field set as header cards, in header order.
func (fs FieldSet) Cards() []fitsio.Card {
	return []fitsio.Card{
		{Name: "SIMPLE", Value: fs.Simple},
		{Name: "BITPIX", Value: fs.Bitpix},
		{Name: "NAXIS", Value: fs.Naxis},
		{Name: "NAXIS1", Value: fs.Naxis1},
		{Name: "NAXIS2", Value: fs.Naxis2},
		{Name: "OBJECT", Value: fs.Object},
		{Name: "TELESCOP", Value: fs.Telescope},
		{Name: "INSTRUME", Value: fs.Instrument},
		{Name: "FILTER", Value: fs.Filter},
		{Name: "EXPTIME", Value: fs.ExposureTime},
		{Name: "DATE-OBS", Value: fs.DateObs},
		{Name: "RA", Value: fs.RA},
		{Name: "DEC", Value: fs.Dec},
		{Name: "AIRMASS", Value: fs.Airmass},
		{Name: "PROPID", Value: fs.ProposalID},
		{Name: "SITEID", Value: fs.SiteID},
		{Name: "TELID", Value: fs.TelescopeID},
		{Name: "OBSTYPE", Value: fs.ObsType},
		{Name: "REQNUM", Value: fs.RequestNumber},
		{Name: "BLKUID", Value: fs.BlockUID},
		{Name: "RLEVEL", Value: fs.ReductionLevel},
		{Name: "OBSERVER", Value: fs.Observer},
		{Name: "DAY_OBS", Value: fs.DayObs},
		{Name: "L1PUBDAT", Value: fs.L1PubDate},
	}
}

// Headers returns the field set keyed by header keyword.
func (fs FieldSet) Headers() map[string]any {
	cards := fs.Cards()
	h := make(map[string]any, len(cards))
	for _, c := range cards {
		h[c.Name] = c.Value
	}
	return h
}
