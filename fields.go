// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

// GPS IFD tag IDs written by this package.
const (
	TagGPSVersionID    uint16 = 0x0
	TagGPSLatitudeRef  uint16 = 0x1
	TagGPSLatitude     uint16 = 0x2
	TagGPSLongitudeRef uint16 = 0x3
	TagGPSLongitude    uint16 = 0x4
	TagGPSMapDatum     uint16 = 0x12

	// IFD0 entry pointing to the GPS IFD.
	tagGPSInfoIFDPointer uint16 = 0x8825
)

var fieldsGPS = map[uint16]string{0x0: "GPSVersionID", 0x1: "GPSLatitudeRef", 0x2: "GPSLatitude", 0x3: "GPSLongitudeRef", 0x4: "GPSLongitude", 0x5: "GPSAltitudeRef", 0x6: "GPSAltitude", 0x7: "GPSTimeStamp", 0x8: "GPSSatellites", 0x9: "GPSStatus", 0xa: "GPSMeasureMode", 0xb: "GPSDOP", 0xc: "GPSSpeedRef", 0xd: "GPSSpeed", 0xe: "GPSTrackRef", 0xf: "GPSTrack", 0x10: "GPSImgDirectionRef", 0x11: "GPSImgDirection", 0x12: "GPSMapDatum", 0x13: "GPSDestLatitudeRef", 0x14: "GPSDestLatitude", 0x15: "GPSDestLongitudeRef", 0x16: "GPSDestLongitude", 0x17: "GPSDestBearingRef", 0x18: "GPSDestBearing", 0x19: "GPSDestDistanceRef", 0x1a: "GPSDestDistance", 0x1b: "GPSProcessingMethod", 0x1c: "GPSAreaInformation", 0x1d: "GPSDateStamp", 0x1e: "GPSDifferential"}

// gpsVersion is GPSVersionID 2.3.0.0.
var gpsVersion = []byte{2, 3, 0, 0}

const mapDatumWGS84 = "WGS-84"
