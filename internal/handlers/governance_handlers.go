package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kovanet/kovascan/api"
	"github.com/kovanet/kovascan/internal/storage"
)

// GetGovernanceEvents returns proposals, votes and executions newest first.
func GetGovernanceEvents(c *gin.Context) {
	queryParams, err := api.ParseQueryParams(c.Request)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}
	if _, err := api.ValidateFilters("governance_events", queryParams.FilterParams); err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	events, err := mainStorage.GetGovernanceEvents(c.Request.Context(), storage.QueryFilter{
		Limit:  queryParams.Limit,
		Offset: queryParams.Offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error querying governance events")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, api.QueryResponse{
		Meta: api.Meta{
			Limit:      queryParams.Limit,
			Offset:     queryParams.Offset,
			TotalItems: len(events),
		},
		Data: events,
	})
}

// GetPrivacyActions returns shielded pool deposits and withdrawals newest
// first. Commitment, nullifier and recipient are nullable; whichever the
// action type does not populate serialises as null.
func GetPrivacyActions(c *gin.Context) {
	queryParams, err := api.ParseQueryParams(c.Request)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}
	if _, err := api.ValidateFilters("privacy_actions", queryParams.FilterParams); err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	actions, err := mainStorage.GetPrivacyActions(c.Request.Context(), storage.QueryFilter{
		Limit:  queryParams.Limit,
		Offset: queryParams.Offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error querying privacy actions")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, api.QueryResponse{
		Meta: api.Meta{
			Limit:      queryParams.Limit,
			Offset:     queryParams.Offset,
			TotalItems: len(actions),
		},
		Data: actions,
	})
}
