package wsiview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wsiview/wsiview/annotation"
	"github.com/wsiview/wsiview/cache"
	"github.com/wsiview/wsiview/render"
	"github.com/wsiview/wsiview/source"
)

// error messages
var annotationsRequired = "`annotations` must carry at least one geometry to build a mask"

// renderMode selects which of the three annotation renditions a
// request produces.
type renderMode int

const (
	modeMask renderMode = iota
	modeCrop
	modeDrawing
)

func (m renderMode) schema() annotation.Schema {
	switch m {
	case modeMask:
		return annotation.MaskSchema
	case modeCrop:
		return annotation.CropSchema
	}
	return annotation.DrawingSchema
}

// MaskHandler serves the annotation geometry as a filled mask over a
// black background.
func MaskHandler(w http.ResponseWriter, r *http.Request) {
	annotationHandler(w, r, modeMask)
}

// CropHandler serves the image pixels under the annotations, the
// outside faded by the requested background transparency.
func CropHandler(w http.ResponseWriter, r *http.Request) {
	annotationHandler(w, r, modeCrop)
}

// DrawingHandler serves the image with the annotation outlines drawn
// on top.
func DrawingHandler(w http.ResponseWriter, r *http.Request) {
	annotationHandler(w, r, modeDrawing)
}

func annotationHandler(w http.ResponseWriter, r *http.Request, mode renderMode) {
	vars := mux.Vars(r)
	ctx := r.Context()
	config, _ := ctx.Value(ContextKey("config")).(*Config)
	planes, _ := ctx.Value(ContextKey("planes")).(*cache.FileCache)

	format, err := render.NegotiateFormat(vars["extension"], r.Header.Get("Accept"))
	if err != nil {
		respondError(w, err)
		return
	}

	req, err := DecodeRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	origin, err := annotation.ParseOrigin(originOf(req, r))
	if err != nil {
		respondError(w, HTTPError{http.StatusBadRequest, err.Error()})
		return
	}

	safety, err := render.ParseSizeSafety(r.Header.Get("X-Image-Size-Safety"))
	if err != nil {
		respondError(w, HTTPError{http.StatusBadRequest, err.Error()})
		return
	}

	src, err := source.Open(config.Images, vars["path"], planes)
	if err != nil {
		respondError(w, err)
		return
	}
	defer src.Close()
	info := src.Info()

	annotations, err := annotation.Parse(req.Annotations, mode.schema(), origin,
		float64(info.Height), req.pointEnvelope())
	if err != nil {
		respondError(w, err)
		return
	}
	if mode == modeMask && annotations.Len() == 0 {
		respondError(w, annotation.InvalidGeometryError{
			Field:   "annotations",
			Value:   req.Annotations,
			Message: annotationsRequired,
		})
		return
	}

	factor, err := req.contextFactor()
	if err != nil {
		respondError(w, err)
		return
	}
	trySquare := req.TrySquare && mode == modeDrawing
	region := render.RegionOf(annotations, factor, trySquare, info)

	sr, err := req.scaleRequest()
	if err != nil {
		respondError(w, err)
		return
	}
	width, height, err := render.ResolveSize(region, info.Pyramid, sr)
	if err != nil {
		respondError(w, err)
		return
	}
	requestedW, requestedH := width, height
	limits := render.SizeLimits{
		MaxWidth:  config.MaxWidth,
		MaxHeight: config.MaxHeight,
		MaxArea:   config.MaxArea,
	}
	width, height, _ = render.SafeSize(width, height, limits, safety)

	af := render.BuildAffine(region, width, height)

	var raster *render.Raster
	if mode == modeMask {
		raster = render.RenderMask(annotations, af, width, height)
	} else {
		opts, err := req.composeOptions()
		if err != nil {
			respondError(w, err)
			return
		}
		if mode == modeDrawing {
			// drawings carry blended strokes, always 8 bit
			opts.Bits = 8
		}
		bt, err := req.backgroundTransparency()
		if err != nil {
			respondError(w, err)
			return
		}
		readCtx, cancel := context.WithTimeout(ctx,
			time.Duration(config.SourceTimeout)*time.Second)
		defer cancel()
		raster, err = render.Compose(readCtx, src, region, width, height, opts)
		if err != nil {
			respondError(w, err)
			return
		}
		if mode == modeCrop {
			raster = render.RenderCrop(raster, annotations, af, bt)
		} else {
			raster = render.RenderDrawing(raster, annotations, af,
				req.pointCross(), req.pointEnvelope())
		}
	}

	var buffer bytes.Buffer
	if err := render.EncodeRaster(&buffer, raster, format, config.JPEGQuality); err != nil {
		respondError(w, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", format.Mime)
	header.Set("Content-Length", strconv.Itoa(buffer.Len()))
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("X-Image-Requested-Size", fmt.Sprintf("%dx%d", requestedW, requestedH))
	header.Set("X-Image-Effective-Size", fmt.Sprintf("%dx%d", width, height))
	w.Write(buffer.Bytes())
}

// originOf prefers the body origin over the request header.
func originOf(req *AnnotationRequest, r *http.Request) string {
	if req.Origin != "" {
		return req.Origin
	}
	return r.Header.Get("X-Annotation-Origin")
}

// InfoHandler responds with the image technical properties.
func InfoHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx := r.Context()
	config, _ := ctx.Value(ContextKey("config")).(*Config)
	planes, _ := ctx.Value(ContextKey("planes")).(*cache.FileCache)

	src, err := source.Open(config.Images, vars["path"], planes)
	if err != nil {
		respondError(w, err)
		return
	}
	defer src.Close()

	clean, _ := source.ScrubPath(vars["path"])
	buffer, err := json.MarshalIndent(NewInfoResponse(clean, src.Info()), "", "  ")
	if err != nil {
		respondError(w, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "application/json")
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Cache-Control", fmt.Sprintf("max-age=%v, public", config.Cache.HTTP))
	w.Write(buffer)
}

// IndexHandler describes the service to a discovering client.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	buffer, err := json.MarshalIndent(IndexResponse{
		Service: "wsiview",
		Version: Version,
		Endpoints: []string{
			"GET /image/{path}/info",
			"POST /image/{path}/annotation/mask",
			"POST /image/{path}/annotation/crop",
			"POST /image/{path}/annotation/drawing",
		},
	}, "", "  ")
	if err != nil {
		respondError(w, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "application/json")
	header.Set("Access-Control-Allow-Origin", "*")
	w.Write(buffer)
}
