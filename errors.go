package wsiview

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wsiview/wsiview/annotation"
	"github.com/wsiview/wsiview/render"
	"github.com/wsiview/wsiview/source"
)

// HTTPError represents a HTTP error to be shown to the user.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error formats the HTTPError message.
func (e HTTPError) Error() string {
	return fmt.Sprintf("%d (%s) %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// asHTTPError maps pipeline errors onto transport terms: everything
// the client could have written differently is a 400, a missing image
// is a 404 and an unreachable backing store a 502.
func asHTTPError(err error) HTTPError {
	var (
		he HTTPError
		ue source.UnavailableError

		ge annotation.InvalidGeometryError
		ze render.InvalidZoomError
		le render.InvalidLevelError
		re render.UnsupportedReductionError
		oe render.OutOfRangeIndexError
		pe render.ParameterError
		ce render.UnknownColormapError
		fe render.UnknownFilterError
		me render.UnsupportedMimetypeError
	)
	switch {
	case errors.As(err, &he):
		return he
	case errors.As(err, &ue):
		if ue.NotFound() {
			return HTTPError{http.StatusNotFound, err.Error()}
		}
		return HTTPError{http.StatusBadGateway, err.Error()}
	case errors.As(err, &ge), errors.As(err, &ze), errors.As(err, &le),
		errors.As(err, &re), errors.As(err, &oe), errors.As(err, &pe),
		errors.As(err, &ce), errors.As(err, &fe), errors.As(err, &me):
		return HTTPError{http.StatusBadRequest, err.Error()}
	}
	return HTTPError{http.StatusInternalServerError, err.Error()}
}

func respondError(w http.ResponseWriter, err error) {
	e := asHTTPError(err)
	debug("request failed: %v", e)
	http.Error(w, e.Error(), e.StatusCode)
}
