// Package wsiview serves annotation-driven renditions of very large
// pyramidal images. Clients post vector annotations (WKT, GeoJSON or
// bare coordinate lists) against an image and receive back a mask, a
// transparency-aware crop or a drawing of the annotated region,
// composed across the image's channel, depth and time axes.
package wsiview

import (
	d "github.com/tj/go-debug"
)

// Version is the server version advertised on the index endpoint.
const Version = "1.0.0"

var debug = d.Debug("wsiview")
