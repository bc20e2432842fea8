package metadata

// Sample returns the built-in observation and header used when no metadata file is given.
// Each call returns fresh maps.
func Sample() (Observation, RawHeader) {
	obs := Observation{
		"basename": "sample_image_20250616_145810",
		"DAY_OBS":  "20250616",
		"DATE_OBS": "2025-06-16T14:58:10",
		"PROPID":   "test-proposal",
		"INSTRUME": "test-instrument",
		"OBJECT":   "Sample Target",
		"RLEVEL":   0,
		"SITEID":   "TST",
		"TELID":    "T01",
		"EXPTIME":  60.0,
		"FILTER":   "V",
		"L1PUBDAT": "2025-07-01T00:00:00",
		"OBSTYPE":  "EXPOSE",
		"BLKUID":   1,
		"REQNUM":   1,
		"OBSERVER": "Dr. Astronomer",
	}

	hdr := RawHeader{
		"SIMPLE":   true,
		"BITPIX":   -32,
		"NAXIS":    2,
		"NAXIS1":   1024,
		"NAXIS2":   1024,
		"OBJECT":   "Sample Target",
		"TELESCOP": "Sample Telescope",
		"INSTRUME": "test-instrument",
		"FILTER":   "V",
		"EXPTIME":  60.0,
		"DATE-OBS": "2025-06-16T14:58:10",
		"RA":       123.45,
		"DEC":      67.89,
		"AIRMASS":  1.23,
		"PROPID":   "test-proposal",
		"SITEID":   "TST",
		"TELID":    "T01",
		"OBSTYPE":  "EXPOSE",
		"REQNUM":   1,
		"BLKUID":   1,
		"RLEVEL":   0,
		"OBSERVER": "Dr. Astronomer",
		"DAY_OBS":  "20250616",
		"L1PUBDAT": "2025-07-01T00:00:00",
	}

	return obs, hdr
}
