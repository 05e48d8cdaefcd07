package parsers

import (
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/common/apitypes"
)

// DepositRequest is the body of POST /deposit
type DepositRequest struct {
	Amount    *apitypes.StrBigInt `json:"amount" binding:"required"`
	Recipient *ethCommon.Address  `json:"recipient"`
	MinOut    *apitypes.StrBigInt `json:"minOut"`
}

// ParseDepositRequest parses the deposit body. The recipient defaults to the
// caller and minOut to 0.
func ParseDepositRequest(c *gin.Context, caller ethCommon.Address) (amount *big.Int,
	recipient ethCommon.Address, minOut *big.Int, err error) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, ethCommon.Address{}, nil, err
	}
	recipient = caller
	if req.Recipient != nil {
		recipient = *req.Recipient
	}
	minOut = big.NewInt(0)
	if req.MinOut != nil {
		minOut = req.MinOut.BigInt()
	}
	return req.Amount.BigInt(), recipient, minOut, nil
}

// AmountRequest is the body of the endpoints that take a single amount:
// POST /withdraw, /finalize and /custody/lock
type AmountRequest struct {
	Amount *apitypes.StrBigInt `json:"amount" binding:"required"`
}

// ParseAmountRequest parses a body with a single amount
func ParseAmountRequest(c *gin.Context) (*big.Int, error) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}
	return req.Amount.BigInt(), nil
}

// RedeemRequest is the body of POST /redeem
type RedeemRequest struct {
	BatchID *uint64             `json:"batchId" binding:"required"`
	Qty     *apitypes.StrBigInt `json:"qty" binding:"required"`
}

// ParseRedeemRequest parses the redeem body
func ParseRedeemRequest(c *gin.Context) (common.BatchID, *big.Int, error) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return 0, nil, err
	}
	return common.BatchID(*req.BatchID), req.Qty.BigInt(), nil
}
