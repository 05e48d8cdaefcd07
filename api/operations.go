package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vaultbridge/vaultbridge-node/api/parsers"
	"github.com/vaultbridge/vaultbridge-node/common/apitypes"
)

func (a *API) postDeposit(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	amount, recipient, minOut, err := parsers.ParseDepositRequest(c, from)
	if err != nil {
		retBadReq(err, c)
		return
	}
	minted, err := a.engine.Deposit(c.Request.Context(), from, amount, recipient, minOut)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"minted": apitypes.NewBigIntStr(minted)})
}

func (a *API) postWithdraw(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	amount, err := parsers.ParseAmountRequest(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	batchID, err := a.engine.Withdraw(from, amount)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batchId": batchID})
}

func (a *API) postRedeem(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	batchID, qty, err := parsers.ParseRedeemRequest(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	payout, err := a.manager.Redeem(from, batchID, qty)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout": apitypes.NewBigIntStr(payout)})
}

func (a *API) postTick(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	finalized, status, err := a.engine.TickStatus(c.Request.Context(), from)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"finalized": finalized,
		"state":     status.State,
	})
}

func (a *API) postFinalize(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	total, err := parsers.ParseAmountRequest(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	status, err := a.engine.FinalizeWithdrawingBatchStatus(from, total)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"finalizedCount": status.FinalizedCount,
		"state":          status.State,
	})
}

func (a *API) postCollectFee(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	fee, err := a.fee.CollectFee(c.Request.Context(), from)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee": apitypes.NewBigIntStr(fee)})
}

func (a *API) postCustodyLock(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	amount, err := parsers.ParseAmountRequest(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	if err := a.ledger.ReturnCustody(from, amount); err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": apitypes.NewBigIntStr(amount)})
}

func (a *API) postCustodyRelease(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	released, err := a.ledger.ReleaseCustody(from)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": apitypes.NewBigIntStr(released)})
}
