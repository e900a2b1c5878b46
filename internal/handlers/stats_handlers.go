package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kovanet/kovascan/api"
	"github.com/kovanet/kovascan/internal/common"
)

// GetChainStats returns height, block count and estimated block time and
// throughput. The estimates are computed over the full indexed span and are
// zero when fewer than two blocks are indexed.
func GetChainStats(c *gin.Context) {
	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	stats, err := mainStorage.GetChainStats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error querying chain stats")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, stats)
}

// GetDAStats returns the average number of data availability blobs per block.
func GetDAStats(c *gin.Context) {
	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	stats, err := mainStorage.GetDAStats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error querying DA stats")
		api.InternalErrorHandler(c)
		return
	}

	sendJSONResponse(c, stats)
}

// GetDomainStats returns per-domain batch counts and last activity heights.
func GetDomainStats(c *gin.Context) {
	mainStorage, err := getMainStorage()
	if err != nil {
		log.Error().Err(err).Msg("Error getting main storage")
		api.InternalErrorHandler(c)
		return
	}

	stats, err := mainStorage.GetDomainStats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error querying domain stats")
		api.InternalErrorHandler(c)
		return
	}

	if stats == nil {
		stats = []common.DomainStats{}
	}
	sendJSONResponse(c, gin.H{"domains": stats})
}
