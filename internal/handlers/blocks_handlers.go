package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kovanet/kovascan/api"
	"github.com/kovanet/kovascan/internal/common"
	"github.com/kovanet/kovascan/internal/storage"
)

// GetBlocks returns indexed blocks newest first.
func GetBlocks(c *gin.Context) {
	queryParams, err := api.ParseQueryParams(c.Request)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}
	if _, err := api.ValidateFilters("blocks", queryParams.FilterParams); err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	blocks, err := mainStorage.GetBlocks(c.Request.Context(), storage.QueryFilter{
		Limit:  queryParams.Limit,
		Offset: queryParams.Offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error querying blocks")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, api.QueryResponse{
		Meta: api.Meta{
			Limit:      queryParams.Limit,
			Offset:     queryParams.Offset,
			TotalItems: len(blocks),
		},
		Data: blocks,
	})
}

// GetBlockByHeight returns one block with its transactions ordered by
// position.
func GetBlockByHeight(c *gin.Context) {
	height, err := strconv.ParseInt(c.Param("height"), 10, 64)
	if err != nil || height < 0 {
		api.BadRequestErrorHandler(c, fmt.Errorf("invalid block height %q", c.Param("height")))
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	block, txs, err := mainStorage.GetBlockByHeight(c.Request.Context(), height)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			api.NotFoundErrorHandler(c, fmt.Errorf("block %d not found", height))
			return
		}
		log.Error().Err(err).Int64("height", height).Msg("Error querying block")
		api.InternalErrorHandler(c)
		return
	}

	if txs == nil {
		txs = []common.Transaction{}
	}
	sendJSONResponse(c, gin.H{"block": block, "transactions": txs})
}

func sendJSONResponse(c *gin.Context, response interface{}) {
	c.JSON(http.StatusOK, response)
}
