/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/xbridge"
	"github.com/jerry-enebeli/xbridge/api/middleware"
	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	bridge *xbridge.Bridge
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.GET("/settings", a.GetSettings)
	router.GET("/fees", a.GetFees)
	router.POST("/fees/distribute", a.DistributeFees)
	router.GET("/reporters", a.GetReporters)

	router.GET("/transfers", a.GetTransfers)
	router.GET("/transfers/:id", a.GetTransfer)
	router.POST("/deposits", a.RecordDeposit)
	router.POST("/hooks/ledger", a.LedgerHook)

	router.POST("/reports", a.SubmitReport)
	router.GET("/reports", a.GetReports)
	router.GET("/reports/:id", a.GetReport)
	router.POST("/reports/:id/execute", a.ExecuteReport)
	router.POST("/reports/:id/fail", a.FailReport)
	router.GET("/archive", a.GetArchivedReports)

	admin := router.Group("/admin")
	admin.POST("/init", a.InitBridge)
	admin.PUT("/settings", a.UpdateBridge)
	admin.POST("/enable", a.EnableBridge)
	admin.POST("/reporters", a.AddReporter)
	admin.DELETE("/reporters/:account", a.RemoveReporter)
	admin.DELETE("/archive", a.ClearArchive)
	admin.GET("/ledger", a.GetPendingLedger)
	admin.POST("/ledger/settle", a.SettleLedger)

	return a.router
}

func NewAPI(b *xbridge.Bridge) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	r.Use(middleware.NewAuthMiddleware(b).Authenticate())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{bridge: b, router: r}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}

func invalidInput(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a non-negative integer. pass id in the route /:id"})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
