package wsiview

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/wsiview/wsiview/annotation"
	"github.com/wsiview/wsiview/render"
)

// error messages
var (
	bodyError          = "the request body expects a JSON annotation document: %v"
	scaleError         = "`size`, `width`, `height`, `zoom` and `level` are mutually exclusive: got %s"
	integerError       = "`%s` expects an integer or a list of integers: %#v"
	numberError        = "`%s` expects a number or a list of numbers: %#v"
	stringError        = "`%s` expects a string or a list of strings: %#v"
	intensityError     = "`%s` expects numbers or \"AUTO\": %#v"
	bitsFieldError     = "`bits` expects 8, 16 or \"AUTO\": %#v"
	transparencyError  = "`background_transparency` must lie in [0, 100]: %#v"
	contextFactorError = "`context_factor` must be a positive number: %#v"
)

// defaultPointEnvelope is the side length, in image pixels, of the
// square stood in for a point annotation when a region needs an area.
const defaultPointEnvelope = 100

// AnnotationRequest is the JSON body shared by the three annotation
// endpoints. Axis selections and per-channel tuning fields accept a
// scalar or a list.
type AnnotationRequest struct {
	Annotations interface{} `json:"annotations"`
	Origin      string      `json:"origin"`

	ContextFactor *float64 `json:"context_factor"`
	TrySquare     bool     `json:"try_square"`

	Size   *int `json:"size"`
	Width  *int `json:"width"`
	Height *int `json:"height"`
	Zoom   *int `json:"zoom"`
	Level  *int `json:"level"`

	Channels   interface{} `json:"channels"`
	ZSlices    interface{} `json:"z_slices"`
	Timepoints interface{} `json:"timepoints"`

	MinIntensities interface{} `json:"min_intensities"`
	MaxIntensities interface{} `json:"max_intensities"`
	Gammas         interface{} `json:"gammas"`
	Filters        interface{} `json:"filters"`
	Colormaps      interface{} `json:"colormaps"`

	Bits       interface{} `json:"bits"`
	Colorspace string      `json:"colorspace"`

	ChannelReduction string `json:"c_reduction"`
	ZReduction       string `json:"z_reduction"`
	TReduction       string `json:"t_reduction"`

	BackgroundTransparency *int `json:"background_transparency"`

	PointCross          *bool    `json:"point_cross"`
	PointEnvelopeLength *float64 `json:"point_envelope_length"`
}

// DecodeRequest reads the JSON body. An empty body is a valid request
// selecting the whole image at its natural size.
func DecodeRequest(r *http.Request) (*AnnotationRequest, error) {
	req := &AnnotationRequest{}
	if r.Body == nil {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && err != io.EOF {
		return nil, HTTPError{http.StatusBadRequest, fmt.Sprintf(bodyError, err)}
	}
	return req, nil
}

// scaleRequest extracts the scale fields, rejecting requests that set
// more than one of them.
func (req *AnnotationRequest) scaleRequest() (render.ScaleRequest, error) {
	sr := render.ScaleRequest{
		Size:   req.Size,
		Width:  req.Width,
		Height: req.Height,
		Zoom:   req.Zoom,
		Level:  req.Level,
	}
	if fields := sr.Fields(); len(fields) > 1 {
		return sr, HTTPError{
			http.StatusBadRequest,
			fmt.Sprintf(scaleError, strings.Join(fields, ",")),
		}
	}
	return sr, nil
}

func (req *AnnotationRequest) contextFactor() (float64, error) {
	if req.ContextFactor == nil {
		return 1, nil
	}
	if *req.ContextFactor <= 0 {
		return 0, HTTPError{
			http.StatusBadRequest,
			fmt.Sprintf(contextFactorError, *req.ContextFactor),
		}
	}
	return *req.ContextFactor, nil
}

func (req *AnnotationRequest) backgroundTransparency() (int, error) {
	if req.BackgroundTransparency == nil {
		return 100, nil
	}
	bt := *req.BackgroundTransparency
	if bt < 0 || bt > 100 {
		return 0, HTTPError{
			http.StatusBadRequest,
			fmt.Sprintf(transparencyError, bt),
		}
	}
	return bt, nil
}

func (req *AnnotationRequest) pointCross() bool {
	return req.PointCross == nil || *req.PointCross
}

func (req *AnnotationRequest) pointEnvelope() float64 {
	if req.PointEnvelopeLength == nil || *req.PointEnvelopeLength <= 0 {
		return defaultPointEnvelope
	}
	return *req.PointEnvelopeLength
}

// composeOptions assembles the compositor parameters from the
// scalar-or-list fields.
func (req *AnnotationRequest) composeOptions() (render.ComposeOptions, error) {
	opts := render.ComposeOptions{
		ChannelReduction: strings.ToUpper(strings.TrimSpace(req.ChannelReduction)),
		ZReduction:       strings.ToUpper(strings.TrimSpace(req.ZReduction)),
		TReduction:       strings.ToUpper(strings.TrimSpace(req.TReduction)),
	}

	var err error
	if opts.Channels, err = intList(req.Channels, "channels"); err != nil {
		return opts, err
	}
	if opts.ZSlices, err = intList(req.ZSlices, "z_slices"); err != nil {
		return opts, err
	}
	if opts.Timepoints, err = intList(req.Timepoints, "timepoints"); err != nil {
		return opts, err
	}
	if opts.MinIntensities, err = boundList(req.MinIntensities, "min_intensities"); err != nil {
		return opts, err
	}
	if opts.MaxIntensities, err = boundList(req.MaxIntensities, "max_intensities"); err != nil {
		return opts, err
	}
	if opts.Gammas, err = floatList(req.Gammas, "gammas"); err != nil {
		return opts, err
	}
	if opts.Filters, err = stringList(req.Filters, "filters"); err != nil {
		return opts, err
	}
	if opts.Colormaps, err = stringList(req.Colormaps, "colormaps"); err != nil {
		return opts, err
	}
	if opts.Bits, err = parseBits(req.Bits); err != nil {
		return opts, err
	}
	if opts.Colorspace, err = render.ParseColorspace(req.Colorspace); err != nil {
		return opts, err
	}
	return opts, nil
}

func intList(v interface{}, field string) ([]int, error) {
	items := annotation.EnsureList(v)
	if items == nil {
		return nil, nil
	}
	out := make([]int, len(items))
	for i, item := range items {
		f, ok := item.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, render.ParameterError{
				Field:   field,
				Message: fmt.Sprintf(integerError, field, item),
			}
		}
		out[i] = int(f)
	}
	return out, nil
}

func floatList(v interface{}, field string) ([]float64, error) {
	items := annotation.EnsureList(v)
	if items == nil {
		return nil, nil
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, ok := item.(float64)
		if !ok {
			return nil, render.ParameterError{
				Field:   field,
				Message: fmt.Sprintf(numberError, field, item),
			}
		}
		out[i] = f
	}
	return out, nil
}

func stringList(v interface{}, field string) ([]string, error) {
	items := annotation.EnsureList(v)
	if items == nil {
		return nil, nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, render.ParameterError{
				Field:   field,
				Message: fmt.Sprintf(stringError, field, item),
			}
		}
		out[i] = s
	}
	return out, nil
}

func boundList(v interface{}, field string) ([]render.IntensityBound, error) {
	items := annotation.EnsureList(v)
	if items == nil {
		return nil, nil
	}
	out := make([]render.IntensityBound, len(items))
	for i, item := range items {
		switch b := item.(type) {
		case float64:
			out[i] = render.IntensityBound{Value: b}
		case string:
			if !strings.EqualFold(b, "AUTO") {
				return nil, render.ParameterError{
					Field:   field,
					Message: fmt.Sprintf(intensityError, field, item),
				}
			}
			out[i] = render.IntensityBound{Auto: true}
		default:
			return nil, render.ParameterError{
				Field:   field,
				Message: fmt.Sprintf(intensityError, field, item),
			}
		}
	}
	return out, nil
}

func parseBits(v interface{}) (int, error) {
	switch b := v.(type) {
	case nil:
		return 0, nil
	case string:
		if strings.EqualFold(b, "AUTO") {
			return 0, nil
		}
	case float64:
		if b == 8 || b == 16 {
			return int(b), nil
		}
	}
	return 0, render.ParameterError{
		Field:   "bits",
		Message: fmt.Sprintf(bitsFieldError, v),
	}
}
