package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Error struct {
	Error string `json:"error"`
}

type Meta struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalItems int `json:"total_items"`
}

type QueryResponse struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

type QueryParams struct {
	FilterParams map[string]string `schema:"-"`
	Limit        int               `schema:"limit"`
	Offset       int               `schema:"offset"`
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// ParseQueryParams decodes limit/offset plus the endpoint's filter keys,
// accepted both bare (?sender=) and with the filter_ prefix. The limit is
// clamped to [1, MaxLimit] with DefaultLimit when absent; a negative offset
// is rejected rather than clamped.
func ParseQueryParams(r *http.Request, filterKeys ...string) (QueryParams, error) {
	params := QueryParams{Limit: DefaultLimit}
	rawQueryParams := r.URL.Query()
	params.FilterParams = make(map[string]string)
	known := make(map[string]bool, len(filterKeys))
	for _, k := range filterKeys {
		known[k] = true
	}
	for key, values := range rawQueryParams {
		strippedKey := strings.TrimPrefix(key, "filter_")
		if strings.HasPrefix(key, "filter_") || known[strippedKey] {
			params.FilterParams[strippedKey] = values[0]
			delete(rawQueryParams, key)
		}
	}

	if err := queryDecoder.Decode(&params, rawQueryParams); err != nil {
		log.Error().Err(err).Msg("Error parsing query params")
		return QueryParams{}, fmt.Errorf("invalid query parameters: %w", err)
	}

	if params.Offset < 0 {
		return QueryParams{}, fmt.Errorf("offset must not be negative, got %d", params.Offset)
	}
	if params.Limit < 1 {
		params.Limit = 1
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	return params, nil
}

func writeError(c *gin.Context, message string, code int) {
	c.JSON(code, Error{Error: message})
}

var (
	BadRequestErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusBadRequest)
	}
	NotFoundErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusNotFound)
	}
	InternalErrorHandler = func(c *gin.Context) {
		writeError(c, "An unexpected error occurred.", http.StatusInternalServerError)
	}
)
