package api

import (
	"net/http"
	"sort"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/vaultbridge/vaultbridge-node/api/parsers"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/common/apitypes"
	"github.com/vaultbridge/vaultbridge-node/settlement"
)

// BatchAPI is the representation of a batch in the API
type BatchAPI struct {
	BatchID         common.BatchID      `json:"batchId"`
	RequestedAmount *apitypes.BigIntStr `json:"requestedAmount" copier:"-"`
	BurnedAmount    *apitypes.BigIntStr `json:"burnedAmount" copier:"-"`
	CollectedAmount *apitypes.BigIntStr `json:"collectedAmount" copier:"-"`
	AssetDecimals   uint8               `json:"assetDecimals"`
}

func newBatchAPI(batch common.Batch) (*BatchAPI, error) {
	var b BatchAPI
	if err := copier.Copy(&b, &batch); err != nil {
		return nil, err
	}
	b.RequestedAmount = apitypes.NewBigIntStr(batch.RequestedAmount)
	b.BurnedAmount = apitypes.NewBigIntStr(batch.BurnedAmount)
	b.CollectedAmount = apitypes.NewBigIntStr(batch.CollectedAmount)
	return &b, nil
}

// ParamsAPI is the representation of the settlement parameters in the API
type ParamsAPI struct {
	DepositCost       *apitypes.BigIntStr `json:"depositCost" copier:"-"`
	WithdrawalCost    *apitypes.BigIntStr `json:"withdrawalCost" copier:"-"`
	StaleThreshold    time.Duration       `json:"staleThreshold"`
	DepositCap        *apitypes.BigIntStr `json:"depositCap" copier:"-"`
	DepositCapEnabled bool                `json:"depositCapEnabled"`
	Paused            bool                `json:"paused"`
	DepositForwarder  ethCommon.Address   `json:"depositForwarder"`
	FeeCollector      ethCommon.Address   `json:"feeCollector"`
}

// CustodyAPI is the representation of the custody lock in the API
type CustodyAPI struct {
	Locked   *apitypes.BigIntStr `json:"locked"`
	LockedAt *time.Time          `json:"lockedAt"`
}

// StateAPI is the representation of the settlement state in the API
type StateAPI struct {
	State            common.ContractState `json:"state"`
	ActiveBatch      *BatchAPI            `json:"activeBatch" copier:"-"`
	WithdrawingBatch *BatchAPI            `json:"withdrawingBatch" copier:"-"`
	FinalizedCount   int                  `json:"finalizedCount"`
	Params           ParamsAPI            `json:"params" copier:"-"`
	RedemptionPaused bool                 `json:"redemptionPaused"`
	Liabilities      *apitypes.BigIntStr  `json:"liabilities"`
	Custody          CustodyAPI           `json:"custody"`
}

func (a *API) newStateAPI(status settlement.Status) (*StateAPI, error) {
	var s StateAPI
	if err := copier.Copy(&s, &status); err != nil {
		return nil, err
	}
	var err error
	if s.ActiveBatch, err = newBatchAPI(status.ActiveBatch); err != nil {
		return nil, err
	}
	if status.WithdrawingBatch != nil {
		if s.WithdrawingBatch, err = newBatchAPI(*status.WithdrawingBatch); err != nil {
			return nil, err
		}
	}
	if err := copier.Copy(&s.Params, &status.Params); err != nil {
		return nil, err
	}
	s.Params.DepositCost = apitypes.NewBigIntStr(status.Params.DepositCost)
	s.Params.WithdrawalCost = apitypes.NewBigIntStr(status.Params.WithdrawalCost)
	s.Params.DepositCap = apitypes.NewBigIntStr(status.Params.DepositCap)

	s.RedemptionPaused = a.manager.Paused()
	s.Liabilities = apitypes.NewBigIntStr(a.manager.Liabilities())
	locked, lockedAt := a.ledger.Custody()
	s.Custody.Locked = apitypes.NewBigIntStr(locked)
	if locked.Sign() > 0 {
		s.Custody.LockedAt = &lockedAt
	}
	return &s, nil
}

func (a *API) getState(c *gin.Context) {
	stateAPI, err := a.newStateAPI(a.engine.Status())
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, stateAPI)
}

func (a *API) getActiveBatch(c *gin.Context) {
	batch, err := newBatchAPI(a.engine.ActiveBatch())
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (a *API) getWithdrawingBatch(c *gin.Context) {
	withdrawing, ok := a.engine.WithdrawingBatch()
	if !ok {
		retOpErr(common.ErrNoWithdrawingBatch, c)
		return
	}
	batch, err := newBatchAPI(withdrawing)
	if err != nil {
		retOpErr(err, c)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// FeeAPI is the representation of the fee accrual state in the API
type FeeAPI struct {
	LastCollectionTimestamp time.Time           `json:"lastCollectionTimestamp"`
	LastExchangeRate        *apitypes.BigIntStr `json:"lastExchangeRate" copier:"-"`
	FeeReductionPct         *apitypes.BigIntStr `json:"feeReductionPct" copier:"-"`
	Period                  time.Duration       `json:"period"`
	Collected               *apitypes.BigIntStr `json:"collected" copier:"-"`
	Unclaimed               *apitypes.BigIntStr `json:"unclaimed" copier:"-"`
}

func (a *API) getFee(c *gin.Context) {
	status := a.fee.Status()
	var fee FeeAPI
	if err := copier.Copy(&fee, &status); err != nil {
		retOpErr(err, c)
		return
	}
	fee.LastExchangeRate = apitypes.NewBigIntStr(status.LastExchangeRate)
	fee.FeeReductionPct = apitypes.NewBigIntStr(status.FeeReductionPct)
	fee.Collected = apitypes.NewBigIntStr(status.Collected)
	fee.Unclaimed = apitypes.NewBigIntStr(status.Unclaimed)
	c.JSON(http.StatusOK, fee)
}

// ReceiptBalanceAPI is the receipt balance of an account for a batch
type ReceiptBalanceAPI struct {
	BatchID common.BatchID      `json:"batchId"`
	Balance *apitypes.BigIntStr `json:"balance"`
}

// BalancesAPI is the representation of the holdings of an account in the
// API
type BalancesAPI struct {
	Address     ethCommon.Address   `json:"address"`
	Asset       *apitypes.BigIntStr `json:"asset"`
	Synthetic   *apitypes.BigIntStr `json:"synthetic"`
	Receipts    []ReceiptBalanceAPI `json:"receipts"`
	Allowlisted bool                `json:"allowlisted"`
}

func (a *API) getBalances(c *gin.Context) {
	addr, err := parsers.ParseAddressFilter(c)
	if err != nil {
		retBadReq(err, c)
		return
	}
	balances := a.ledger.BalancesOf(addr)
	res := BalancesAPI{
		Address:     addr,
		Asset:       apitypes.NewBigIntStr(balances.Asset),
		Synthetic:   apitypes.NewBigIntStr(balances.Synthetic),
		Receipts:    make([]ReceiptBalanceAPI, 0, len(balances.Receipts)),
		Allowlisted: balances.Allowlisted,
	}
	for batchID, balance := range balances.Receipts {
		res.Receipts = append(res.Receipts, ReceiptBalanceAPI{
			BatchID: batchID,
			Balance: apitypes.NewBigIntStr(balance),
		})
	}
	sort.Slice(res.Receipts, func(i, j int) bool {
		return res.Receipts[i].BatchID < res.Receipts[j].BatchID
	})
	c.JSON(http.StatusOK, res)
}
