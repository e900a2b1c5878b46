package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kovanet/kovascan/api"
	"github.com/kovanet/kovascan/internal/storage"
)

// GetAccounts returns account rollups ordered by most recent activity.
func GetAccounts(c *gin.Context) {
	queryParams, err := api.ParseQueryParams(c.Request)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}
	if _, err := api.ValidateFilters("accounts", queryParams.FilterParams); err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	accounts, err := mainStorage.GetAccounts(c.Request.Context(), storage.QueryFilter{
		Limit:  queryParams.Limit,
		Offset: queryParams.Offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error querying accounts")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, api.QueryResponse{
		Meta: api.Meta{
			Limit:      queryParams.Limit,
			Offset:     queryParams.Offset,
			TotalItems: len(accounts),
		},
		Data: accounts,
	})
}
