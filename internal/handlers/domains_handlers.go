package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kovanet/kovascan/api"
	"github.com/kovanet/kovascan/internal/storage"
)

// GetDomains returns all registered domains ordered by last update.
func GetDomains(c *gin.Context) {
	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	domains, err := mainStorage.GetDomains(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error querying domains")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, gin.H{"domains": domains})
}

// GetRollupBatches returns posted batches newest first, optionally filtered
// by domain.
func GetRollupBatches(c *gin.Context) {
	queryParams, err := api.ParseQueryParams(c.Request, "domain_id")
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}
	if _, err := api.ValidateFilters("rollup_batches", queryParams.FilterParams); err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	batches, err := mainStorage.GetRollupBatches(c.Request.Context(), storage.QueryFilter{
		Limit:    queryParams.Limit,
		Offset:   queryParams.Offset,
		DomainId: queryParams.FilterParams["domain_id"],
	})
	if err != nil {
		log.Error().Err(err).Msg("Error querying rollup batches")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, api.QueryResponse{
		Meta: api.Meta{
			Limit:      queryParams.Limit,
			Offset:     queryParams.Offset,
			TotalItems: len(batches),
		},
		Data: batches,
	})
}
