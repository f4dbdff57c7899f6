// Package planar runs buffer, union, simplification and containment
// operations on go-geom geometries through GEOS. Geometries handed to this
// package are expected to be in projected (meter) coordinates.
//
// An Engine owns a GEOS context and must not be shared between goroutines.
// go-geom values are the only thing that should cross goroutine boundaries.
package planar

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
	"go.uber.org/zap"
)

// QuadSegments is the number of segments used to approximate a quarter
// circle when buffering.
const QuadSegments = 16

// ErrInvalidGeometry is returned when GEOS reports an input as invalid.
var ErrInvalidGeometry = eris.New("planar: invalid geometry")

// Engine wraps a GEOS context.
type Engine struct {
	ctx *geos.Context
}

// NewEngine creates an engine with its own GEOS context.
func NewEngine() *Engine {
	return &Engine{ctx: geos.NewContext()}
}

// Shape is a GEOS geometry bound to the Engine that created it.
type Shape struct {
	g *geos.Geom
}

// Shape converts a go-geom geometry into a GEOS geometry.
func (e *Engine) Shape(g geom.T) (*Shape, error) {
	if g == nil {
		return nil, eris.New("planar: nil geometry")
	}
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "planar: encode WKB")
	}
	var gg *geos.Geom
	if err := guard("read WKB", func() {
		gg, err = e.ctx.NewGeomFromWKB(data)
	}); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "planar: decode WKB")
	}
	return &Shape{g: gg}, nil
}

// Union merges all geometries into one via a GEOS unary union. Every input
// must be valid; otherwise the error wraps ErrInvalidGeometry.
func (e *Engine) Union(gs []geom.T) (*Shape, error) {
	if len(gs) == 0 {
		return nil, eris.New("planar: union of nothing")
	}
	coll := geom.NewGeometryCollection()
	if err := coll.Push(gs...); err != nil {
		return nil, eris.Wrap(err, "planar: build collection")
	}
	s, err := e.Shape(coll)
	if err != nil {
		return nil, err
	}
	if err := s.CheckValid(); err != nil {
		return nil, eris.Wrap(err, "planar: union input")
	}
	return s.apply("unary union", func(g *geos.Geom) *geos.Geom { return g.UnaryUnion() })
}

// LineMerge joins line strings that share endpoints into maximal line
// strings, reversing members where needed.
func (e *Engine) LineMerge(lines *geom.MultiLineString) (*Shape, error) {
	s, err := e.Shape(lines)
	if err != nil {
		return nil, err
	}
	return s.apply("line merge", func(g *geos.Geom) *geos.Geom { return g.LineMerge() })
}

// Geom converts the shape back into a go-geom geometry.
func (s *Shape) Geom() (geom.T, error) {
	var data []byte
	if err := guard("write WKB", func() { data = s.g.ToWKB() }); err != nil {
		return nil, err
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "planar: decode WKB")
	}
	return g, nil
}

// Valid reports whether GEOS considers the shape valid, with the reason when not.
func (s *Shape) Valid() (bool, string) {
	var ok bool
	var reason string
	if err := guard("validate", func() {
		ok = s.g.IsValid()
		if !ok {
			reason = s.g.IsValidReason()
		}
	}); err != nil {
		return false, err.Error()
	}
	return ok, reason
}

// CheckValid returns ErrInvalidGeometry wrapped with the GEOS reason when the
// shape is invalid.
func (s *Shape) CheckValid() error {
	if ok, reason := s.Valid(); !ok {
		return eris.Wrapf(ErrInvalidGeometry, "%s", reason)
	}
	return nil
}

// IsEmpty reports whether the shape has no points.
func (s *Shape) IsEmpty() bool {
	var empty bool
	if err := guard("is empty", func() { empty = s.g.IsEmpty() }); err != nil {
		return true
	}
	return empty
}

// Area returns the planar area in square units of the projection.
func (s *Shape) Area() float64 {
	var a float64
	if err := guard("area", func() { a = s.g.Area() }); err != nil {
		return 0
	}
	return a
}

// Buffer grows the shape by distance (Minkowski sum with a disk).
func (s *Shape) Buffer(distance float64) (*Shape, error) {
	return s.apply("buffer", func(g *geos.Geom) *geos.Geom { return g.Buffer(distance, QuadSegments) })
}

// Simplify reduces vertex count without introducing self-intersections.
func (s *Shape) Simplify(tolerance float64) (*Shape, error) {
	return s.apply("simplify", func(g *geos.Geom) *geos.Geom { return g.TopologyPreserveSimplify(tolerance) })
}

// Difference returns the part of s not covered by other.
func (s *Shape) Difference(other *Shape) (*Shape, error) {
	return s.apply("difference", func(g *geos.Geom) *geos.Geom { return g.Difference(other.g) })
}

// Distance is the minimum planar distance between the two shapes.
func (s *Shape) Distance(other *Shape) (float64, error) {
	var d float64
	if err := guard("distance", func() { d = s.g.Distance(other.g) }); err != nil {
		return 0, err
	}
	return d, nil
}

// Intersects reports whether the two shapes share at least one point.
func (s *Shape) Intersects(other *Shape) (bool, error) {
	var hit bool
	if err := guard("intersects", func() { hit = s.g.Intersects(other.g) }); err != nil {
		return false, err
	}
	return hit, nil
}

func (s *Shape) apply(op string, fn func(*geos.Geom) *geos.Geom) (*Shape, error) {
	var out *geos.Geom
	if err := guard(op, func() { out = fn(s.g) }); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, eris.Errorf("planar: %s returned no geometry", op)
	}
	return &Shape{g: out}, nil
}

// guard converts GEOS panics into errors so a single bad geometry cannot take
// down a batch.
func guard(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("planar: recovered GEOS failure", zap.String("op", op), zap.Any("panic", r))
			err = eris.Errorf("planar: %s: %v", op, r)
		}
	}()
	fn()
	return nil
}
