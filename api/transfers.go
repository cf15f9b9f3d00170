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
	model2 "github.com/jerry-enebeli/xbridge/api/model"
	"github.com/jerry-enebeli/xbridge/tokenledger"
	"github.com/sirupsen/logrus"
)

const ledgerTransactionApplied = "transaction.applied"

func (a Api) GetTransfers(c *gin.Context) {
	limit, offset := pagination(c)
	resp, err := a.bridge.Transfers(c.Request.Context(), c.Query("unexpired") == "true", limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetTransfer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	resp, err := a.bridge.Transfer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordDeposit is the deposit notifier entry point. Ignored movements answer
// 200 with a null transfer.
func (a Api) RecordDeposit(c *gin.Context) {
	var req model2.Deposit
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}
	if err := req.ValidateDeposit(); err != nil {
		invalidInput(c, err)
		return
	}
	deposit, err := req.ToDeposit()
	if err != nil {
		invalidInput(c, err)
		return
	}

	transfer, err := a.bridge.OnTransfer(c.Request.Context(), deposit)
	if err != nil {
		respondError(c, err)
		return
	}
	if transfer == nil {
		c.JSON(http.StatusOK, gin.H{"transfer": nil})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transfer": transfer})
}

// LedgerHook receives the token ledger's webhooks. Only applied transactions
// are turned into deposits; every other event is acknowledged and dropped.
func (a Api) LedgerHook(c *gin.Context) {
	var hook struct {
		Event string                   `json:"event"`
		Data  *tokenledger.Transaction `json:"data"`
	}
	if err := c.ShouldBindJSON(&hook); err != nil {
		invalidInput(c, err)
		return
	}
	if hook.Event != ledgerTransactionApplied || hook.Data == nil {
		logrus.Debugf("ignoring ledger webhook %s", hook.Event)
		c.JSON(http.StatusOK, gin.H{"transfer": nil})
		return
	}

	transfer, err := a.bridge.OnLedgerTransaction(c.Request.Context(), hook.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer": transfer})
}
