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

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/xbridge"
	model2 "github.com/jerry-enebeli/xbridge/api/model"
)

// caller is the reporter the request was authenticated as. An anonymous
// request reaches the bridge with an empty reporter and is refused there.
func caller(c *gin.Context) string {
	account, _ := xbridge.CallerFrom(c.Request.Context())
	return account
}

func (a Api) SubmitReport(c *gin.Context) {
	var req model2.SubmitReport
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}
	if err := req.ValidateSubmitReport(); err != nil {
		invalidInput(c, err)
		return
	}

	resp, err := a.bridge.SubmitReport(c.Request.Context(), caller(c), req.Transfer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a Api) ExecuteReport(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	resp, err := a.bridge.Execute(c.Request.Context(), caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) FailReport(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	resp, err := a.bridge.MarkFailed(c.Request.Context(), caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetReports(c *gin.Context) {
	limit, offset := pagination(c)
	resp, err := a.bridge.Reports(c.Request.Context(), c.Query("unexpired") == "true", limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetReport(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	resp, err := a.bridge.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetArchivedReports(c *gin.Context) {
	limit, offset := pagination(c)
	resp, err := a.bridge.ArchivedReports(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
