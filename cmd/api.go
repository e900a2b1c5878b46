package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/handlers"
	"github.com/kovanet/kovascan/internal/middleware"
)

var (
	apiCmd = &cobra.Command{
		Use:   "api",
		Short: "Run the explorer query API",
		Long:  "Serves paginated, filterable read endpoints over the indexed chain data.",
		Run: func(cmd *cobra.Command, args []string) {
			RunApi(cmd, args)
		},
	}
)

func RunApi(cmd *cobra.Command, args []string) {
	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(middleware.Cors)
	r.Use(gin.Recovery())

	r.GET("/blocks", handlers.GetBlocks)
	r.GET("/blocks/:height", handlers.GetBlockByHeight)
	r.GET("/transactions", handlers.GetTransactions)
	r.GET("/transactions/:hash", handlers.GetTransactionByHash)
	r.GET("/domains", handlers.GetDomains)
	r.GET("/rollup_batches", handlers.GetRollupBatches)
	r.GET("/governance", handlers.GetGovernanceEvents)
	r.GET("/privacy", handlers.GetPrivacyActions)
	r.GET("/accounts", handlers.GetAccounts)

	stats := r.Group("/stats")
	{
		stats.GET("/chain", handlers.GetChainStats)
		stats.GET("/da", handlers.GetDAStats)
		stats.GET("/domains", handlers.GetDomainStats)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	port := config.Cfg.API.Port
	if port == 0 {
		port = 3000
	}
	r.Run(fmt.Sprintf("%s:%d", config.Cfg.API.Host, port))
}
