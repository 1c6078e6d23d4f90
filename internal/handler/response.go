// Package handler exposes composed category pages over HTTP: a stateless
// page endpoint, long-lived page sessions and the proxied remote surfaces.
package handler

import (
	"net/http"
	"net/url"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/composer"
	"github.com/kidsdesign/storefront/internal/location"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/httputil"
)

// PageResponse is a composed view as rendered over HTTP.
type PageResponse struct {
	composer.View
	Links     Links  `json:"links"`
	SessionID string `json:"session_id,omitempty"`
}

// Links are the pagination control targets for a view.
type Links struct {
	Self string `json:"self"`
	Next string `json:"next,omitempty"`
	Prev string `json:"prev,omitempty"`
}

// newPageResponse renders v for the page at u. Prev never points past the
// control page, so an out-of-range page links back to the last page.
func newPageResponse(v composer.View, u *url.URL) PageResponse {
	links := Links{Self: u.String()}
	if v.State == composer.RenderReady {
		p := v.Pagination
		if p.HasNext {
			links.Next = location.WithPage(u, p.CurrentPage+1).String()
		}
		if p.HasPrevious {
			prev := max(min(p.CurrentPage-1, p.ControlPage), 1)
			links.Prev = location.WithPage(u, prev).String()
		}
	}
	return PageResponse{View: v, Links: links}
}

// viewStatus maps a settled view to the status and error body of a one-shot
// page response.
func viewStatus(v composer.View) (int, *httputil.ErrorResponse) {
	switch v.State {
	case composer.RenderReady:
		return http.StatusOK, nil
	case composer.RenderCategoryError:
		if v.Error.Kind == catalog.KindNotFound {
			return http.StatusNotFound, &httputil.ErrorResponse{Code: "CATEGORY_NOT_FOUND", Message: v.Error.Message}
		}
		return http.StatusBadGateway, &httputil.ErrorResponse{Code: "CATEGORY_UNAVAILABLE", Message: v.Error.Message}
	case composer.RenderProductError:
		return http.StatusBadGateway, &httputil.ErrorResponse{Code: "PRODUCTS_UNAVAILABLE", Message: v.Error.Message}
	default:
		timeout := apperrors.GatewayTimeout("catalog page did not load in time")
		return timeout.Status, &httputil.ErrorResponse{Code: timeout.Code, Message: timeout.Message}
	}
}
