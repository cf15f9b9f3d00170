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
	model2 "github.com/jerry-enebeli/xbridge/api/model"
)

func (a Api) InitBridge(c *gin.Context) {
	var req model2.InitBridge
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}
	if err := req.ValidateInitBridge(); err != nil {
		invalidInput(c, err)
		return
	}
	params, err := req.ToInitParams()
	if err != nil {
		invalidInput(c, err)
		return
	}

	resp, err := a.bridge.Init(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a Api) UpdateBridge(c *gin.Context) {
	var req model2.UpdateBridge
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}
	if err := req.ValidateUpdateBridge(); err != nil {
		invalidInput(c, err)
		return
	}
	params, err := req.ToUpdateParams()
	if err != nil {
		invalidInput(c, err)
		return
	}

	resp, err := a.bridge.Update(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) EnableBridge(c *gin.Context) {
	var req model2.EnableBridge
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}
	if err := req.ValidateEnableBridge(); err != nil {
		invalidInput(c, err)
		return
	}

	resp, err := a.bridge.Enable(c.Request.Context(), *req.Enable)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddReporter whitelists a reporter. The response carries the reporter's key,
// which is not retrievable afterwards.
func (a Api) AddReporter(c *gin.Context) {
	var req model2.CreateReporter
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}
	if err := req.ValidateCreateReporter(); err != nil {
		invalidInput(c, err)
		return
	}

	reporter, key, err := a.bridge.AddReporter(c.Request.Context(), req.Account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model2.CreatedReporter{Reporter: reporter, Key: key})
}

func (a Api) RemoveReporter(c *gin.Context) {
	account := c.Param("account")
	if err := a.bridge.RemoveReporter(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": account})
}

func (a Api) ClearArchive(c *gin.Context) {
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count is required. pass it as ?count="})
		return
	}

	cleared, err := a.bridge.ClearArchive(c.Request.Context(), count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (a Api) GetSettings(c *gin.Context) {
	resp, err := a.bridge.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetFees(c *gin.Context) {
	resp, err := a.bridge.Fees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) DistributeFees(c *gin.Context) {
	resp, err := a.bridge.DistributeFees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetReporters(c *gin.Context) {
	resp, err := a.bridge.Reporters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPendingLedger lists token movements the ledger has not accepted yet.
func (a Api) GetPendingLedger(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
		return
	}

	resp, err := a.bridge.PendingLedger(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) SettleLedger(c *gin.Context) {
	resp, err := a.bridge.SettleLedger(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
