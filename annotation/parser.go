package annotation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// error messages
var geometryMissing = "annotation `geometry` is missing"
var geometryError = "annotation `geometry` is not recognized: %#v"
var geometryTypeError = "annotation geometry type %#v is not supported"
var annotationError = "annotation is not an object: %#v"
var styleColorError = "annotation `%s` is not a valid color: %#v"
var styleWidthError = "annotation `stroke_width` must be a non-negative number: %#v"
var originError = "`%s` header expects LEFT_TOP or LEFT_BOTTOM: %#v"

// InvalidGeometryError reports an annotation payload that could not be
// turned into a valid geometry and style.
type InvalidGeometryError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e InvalidGeometryError) Error() string {
	return e.Message
}

func invalidGeometry(field string, value interface{}, format string, args ...interface{}) InvalidGeometryError {
	return InvalidGeometryError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	}
}

// Origin names the coordinate origin annotation payloads use.
type Origin string

// Supported origins. Geometries are stored top-left internally;
// bottom-left payloads are flipped against the image height at parse
// time.
const (
	OriginTopLeft    Origin = "LEFT_TOP"
	OriginBottomLeft Origin = "LEFT_BOTTOM"
)

// ParseOrigin reads an origin header value, defaulting to top-left.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return OriginTopLeft, nil
	case string(OriginTopLeft):
		return OriginTopLeft, nil
	case string(OriginBottomLeft):
		return OriginBottomLeft, nil
	}
	return "", fmt.Errorf(originError, "X-Annotation-Origin", s)
}

// Schema declares how a render mode reads annotation style: which
// fields it ignores and the defaults for absent ones. Schemas are
// fixed per mode, so a typo in a field name cannot survive as a silent
// dictionary miss.
type Schema struct {
	IgnoreFill   bool
	IgnoreStroke bool

	DefaultFill        *Color
	DefaultStroke      *Color
	DefaultStrokeWidth float64
}

// Per-mode schemas. Mask and crop only ever fill, drawing only ever
// strokes unless the payload asks for a fill.
var (
	MaskSchema    = Schema{IgnoreStroke: true, DefaultFill: &White}
	CropSchema    = Schema{IgnoreStroke: true, DefaultFill: &White}
	DrawingSchema = Schema{DefaultStroke: &Red, DefaultStrokeWidth: 1}
)

type rawAnnotation struct {
	Geometry    interface{} `mapstructure:"geometry"`
	FillColor   interface{} `mapstructure:"fill_color"`
	StrokeColor interface{} `mapstructure:"stroke_color"`
	StrokeWidth interface{} `mapstructure:"stroke_width"`
}

// Parse converts a raw payload (a single annotation object or a list of
// them) into a collection. Geometries may be WKT strings, GeoJSON
// geometry objects or bare coordinate lists; styles follow the schema;
// y coordinates are flipped against imageHeight when the origin is
// bottom-left.
func Parse(raw interface{}, schema Schema, origin Origin, imageHeight float64, pointEnvelope float64) (*Collection, error) {
	items := EnsureList(raw)
	annotations := make([]Annotation, 0, len(items))
	for _, item := range items {
		a, err := parseOne(item, schema, origin, imageHeight)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}
	return NewCollection(annotations, pointEnvelope), nil
}

// EnsureList normalizes a scalar-or-list payload into a list. A nil
// payload is an empty list.
func EnsureList(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{raw}
	}
}

func parseOne(item interface{}, schema Schema, origin Origin, imageHeight float64) (Annotation, error) {
	var ra rawAnnotation
	if err := mapstructure.Decode(item, &ra); err != nil {
		return Annotation{}, invalidGeometry("annotations", item, annotationError, item)
	}
	if ra.Geometry == nil {
		return Annotation{}, invalidGeometry("geometry", item, geometryMissing)
	}

	geom, err := decodeGeometry(ra.Geometry)
	if err != nil {
		return Annotation{}, err
	}
	if origin == OriginBottomLeft {
		geom = flipY(geom, imageHeight)
	}

	a := Annotation{Geometry: geom}
	if !schema.IgnoreFill {
		a.FillColor, err = styleColor("fill_color", ra.FillColor, schema.DefaultFill)
		if err != nil {
			return Annotation{}, err
		}
	}
	if !schema.IgnoreStroke {
		a.StrokeColor, err = styleColor("stroke_color", ra.StrokeColor, schema.DefaultStroke)
		if err != nil {
			return Annotation{}, err
		}
		a.StrokeWidth, err = styleWidth(ra.StrokeWidth, schema.DefaultStrokeWidth)
		if err != nil {
			return Annotation{}, err
		}
	}
	return a, nil
}

func styleColor(field string, value interface{}, fallback *Color) (*Color, error) {
	if value == nil {
		if fallback == nil {
			return nil, nil
		}
		c := *fallback
		return &c, nil
	}
	c, err := ParseColor(value)
	if err != nil {
		return nil, invalidGeometry(field, value, styleColorError, field, value)
	}
	return c, nil
}

func styleWidth(value interface{}, fallback float64) (float64, error) {
	switch v := value.(type) {
	case nil:
		return fallback, nil
	case float64:
		if v < 0 {
			return 0, invalidGeometry("stroke_width", value, styleWidthError, value)
		}
		return v, nil
	case int:
		if v < 0 {
			return 0, invalidGeometry("stroke_width", value, styleWidthError, value)
		}
		return float64(v), nil
	}
	return 0, invalidGeometry("stroke_width", value, styleWidthError, value)
}

func decodeGeometry(value interface{}) (orb.Geometry, error) {
	switch v := value.(type) {
	case string:
		geom, err := wkt.Unmarshal(strings.TrimSpace(v))
		if err != nil {
			return nil, invalidGeometry("geometry", value, geometryError, value)
		}
		return checkGeometryType(geom)
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, invalidGeometry("geometry", value, geometryError, value)
		}
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, invalidGeometry("geometry", value, geometryError, value)
		}
		return checkGeometryType(g.Geometry())
	case []interface{}:
		geom, err := geometryFromCoords(v)
		if err != nil {
			return nil, err
		}
		return checkGeometryType(geom)
	}
	return nil, invalidGeometry("geometry", value, geometryError, value)
}

func checkGeometryType(g orb.Geometry) (orb.Geometry, error) {
	switch g.(type) {
	case orb.Point, orb.LineString, orb.Polygon, orb.MultiPolygon:
		return g, nil
	}
	return nil, invalidGeometry("geometry", g, geometryTypeError, g.GeoJSONType())
}

// geometryFromCoords builds a geometry from nested coordinate lists:
// [x,y] is a point, a list of pairs is a line string (or a polygon when
// closed), a list of rings is a polygon, a list of those is a
// multi-polygon.
func geometryFromCoords(v []interface{}) (orb.Geometry, error) {
	if p, ok := asPoint(v); ok {
		return p, nil
	}
	if ls, ok := asLineString(v); ok {
		if len(ls) == 1 {
			return ls[0], nil
		}
		if isClosed(ls) && len(ls) >= 4 {
			return orb.Polygon{orb.Ring(ls)}, nil
		}
		return ls, nil
	}
	if poly, ok := asPolygon(v); ok {
		return poly, nil
	}
	if mp, ok := asMultiPolygon(v); ok {
		return mp, nil
	}
	return nil, invalidGeometry("geometry", v, geometryError, v)
}

func asPoint(v []interface{}) (orb.Point, bool) {
	if len(v) != 2 {
		return orb.Point{}, false
	}
	x, okx := asFloat(v[0])
	y, oky := asFloat(v[1])
	if !okx || !oky {
		return orb.Point{}, false
	}
	return orb.Point{x, y}, true
}

func asLineString(v []interface{}) (orb.LineString, bool) {
	ls := make(orb.LineString, 0, len(v))
	for _, e := range v {
		pair, ok := e.([]interface{})
		if !ok {
			return nil, false
		}
		p, ok := asPoint(pair)
		if !ok {
			return nil, false
		}
		ls = append(ls, p)
	}
	return ls, len(ls) > 0
}

func asPolygon(v []interface{}) (orb.Polygon, bool) {
	poly := make(orb.Polygon, 0, len(v))
	for _, e := range v {
		coords, ok := e.([]interface{})
		if !ok {
			return nil, false
		}
		ls, ok := asLineString(coords)
		if !ok {
			return nil, false
		}
		poly = append(poly, closedRing(ls))
	}
	return poly, len(poly) > 0
}

func asMultiPolygon(v []interface{}) (orb.MultiPolygon, bool) {
	mp := make(orb.MultiPolygon, 0, len(v))
	for _, e := range v {
		rings, ok := e.([]interface{})
		if !ok {
			return nil, false
		}
		poly, ok := asPolygon(rings)
		if !ok {
			return nil, false
		}
		mp = append(mp, poly)
	}
	return mp, len(mp) > 0
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isClosed(ls orb.LineString) bool {
	return len(ls) >= 2 && ls[0] == ls[len(ls)-1]
}

func closedRing(ls orb.LineString) orb.Ring {
	ring := orb.Ring(ls)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// flipY mirrors every y coordinate against the image height, converting
// bottom-left payloads to the internal top-left origin.
func flipY(g orb.Geometry, height float64) orb.Geometry {
	switch v := g.(type) {
	case orb.Point:
		return flipPoint(v, height)
	case orb.LineString:
		out := make(orb.LineString, len(v))
		for i, p := range v {
			out[i] = flipPoint(p, height)
		}
		return out
	case orb.Polygon:
		return flipPolygon(v, height)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, poly := range v {
			out[i] = flipPolygon(poly, height)
		}
		return out
	}
	return g
}

func flipPolygon(poly orb.Polygon, height float64) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		r := make(orb.Ring, len(ring))
		for j, p := range ring {
			r[j] = flipPoint(p, height)
		}
		out[i] = r
	}
	return out
}

func flipPoint(p orb.Point, height float64) orb.Point {
	return orb.Point{p.X(), height - p.Y()}
}
