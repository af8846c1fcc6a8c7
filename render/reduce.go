package render

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// error messages
var reductionError = "`%s_reduction` names no reduction operator: %#v"

// UnsupportedReductionError reports an unknown reduction operator for
// one of the stacking axes.
type UnsupportedReductionError struct {
	Axis string
	Name string
}

func (e UnsupportedReductionError) Error() string {
	return fmt.Sprintf(reductionError, e.Axis, e.Name)
}

// Reducer collapses same-position samples from several planes into a
// single value, staying within [0,1].
type Reducer func(samples []float64) float64

// ReducerByName resolves a reduction operator for the axis named c, z
// or t. ADD saturates at the top of the range instead of wrapping.
func ReducerByName(axis, name string) (Reducer, error) {
	switch name {
	case "ADD":
		return reduceAdd, nil
	case "MAX":
		return reduceMax, nil
	case "MIN":
		return reduceMin, nil
	case "MEAN":
		return reduceMean, nil
	}
	return nil, UnsupportedReductionError{Axis: axis, Name: name}
}

func reduceAdd(s []float64) float64 {
	v := floats.Sum(s)
	if v > 1 {
		return 1
	}
	return v
}

func reduceMax(s []float64) float64 {
	return floats.Max(s)
}

func reduceMin(s []float64) float64 {
	return floats.Min(s)
}

func reduceMean(s []float64) float64 {
	return stat.Mean(s, nil)
}

// reducePlanes folds a stack of planes into one. A single plane passes
// through untouched.
func reducePlanes(planes []*plane, reduce Reducer) *plane {
	if len(planes) == 1 {
		return planes[0]
	}
	out := newPlane(planes[0].w, planes[0].h)
	samples := make([]float64, len(planes))
	for i := range out.pix {
		for j, p := range planes {
			samples[j] = p.pix[i]
		}
		out.pix[i] = reduce(samples)
	}
	return out
}
