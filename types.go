package wsiview

import (
	"github.com/wsiview/wsiview/pyramid"
)

// TierInfo describes one resolution of the pyramid.
type TierInfo struct {
	Level      int     `json:"level"`
	Zoom       int     `json:"zoom"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Downsample float64 `json:"downsample"`
}

// InfoResponse contains the technical properties of an image.
type InfoResponse struct {
	Path        string     `json:"path"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Channels    int        `json:"channels"`
	Depth       int        `json:"depth"`
	Duration    int        `json:"duration"`
	Bits        int        `json:"bits"`
	Interleaved bool       `json:"interleaved"`
	Tiers       []TierInfo `json:"tiers"`
}

// IndexResponse describes the service to a discovering client.
type IndexResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// NewInfoResponse flattens an image description for serving.
func NewInfoResponse(path string, info pyramid.Info) InfoResponse {
	maxZoom := info.Pyramid.MaxZoom()
	tiers := make([]TierInfo, info.Pyramid.Levels())
	for level := range tiers {
		t, _ := info.Pyramid.TierAt(level)
		tiers[level] = TierInfo{
			Level:      t.Level,
			Zoom:       maxZoom - t.Level,
			Width:      t.Width,
			Height:     t.Height,
			Downsample: t.Downsample,
		}
	}
	return InfoResponse{
		Path:        path,
		Width:       info.Width,
		Height:      info.Height,
		Channels:    info.Channels,
		Depth:       info.Depth,
		Duration:    info.Duration,
		Bits:        info.Bits,
		Interleaved: info.Interleaved,
		Tiers:       tiers,
	}
}
