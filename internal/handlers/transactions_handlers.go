package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kovanet/kovascan/api"
	"github.com/kovanet/kovascan/internal/common"
	"github.com/kovanet/kovascan/internal/storage"
)

// GetTransactions returns transactions newest first, optionally filtered by
// sender.
func GetTransactions(c *gin.Context) {
	queryParams, err := api.ParseQueryParams(c.Request, "sender")
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}
	decoded, err := api.ValidateFilters("transactions", queryParams.FilterParams)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	txs, err := mainStorage.GetTransactions(c.Request.Context(), storage.QueryFilter{
		Limit:  queryParams.Limit,
		Offset: queryParams.Offset,
		Sender: decoded["sender"],
	})
	if err != nil {
		log.Error().Err(err).Msg("Error querying transactions")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, api.QueryResponse{
		Meta: api.Meta{
			Limit:      queryParams.Limit,
			Offset:     queryParams.Offset,
			TotalItems: len(txs),
		},
		Data: txs,
	})
}

// GetTransactionByHash returns one transaction by its hex hash.
func GetTransactionByHash(c *gin.Context) {
	hash, err := common.DecodeHex(c.Param("hash"))
	if err != nil {
		api.BadRequestErrorHandler(c, fmt.Errorf("invalid transaction hash: %w", err))
		return
	}

	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	tx, err := mainStorage.GetTransactionByHash(c.Request.Context(), hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			api.NotFoundErrorHandler(c, fmt.Errorf("transaction %s not found", common.EncodeHex(hash)))
			return
		}
		log.Error().Err(err).Msg("Error querying transaction")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, tx)
}
