package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/log"
	"github.com/vaultbridge/vaultbridge-node/metric"
)

type apiErrorCode uint
type apiErrorType string

const (
	// Public error messages (included in response objects)

	// ErrParamValidationFailedCode code for param validation failed error
	ErrParamValidationFailedCode apiErrorCode = 1
	// ErrParamValidationFailedType type for param validation failed error
	ErrParamValidationFailedType apiErrorType = "ErrParamValidationFailed"

	// ErrSQLTimeout error message returned when timeout due to SQL connection
	ErrSQLTimeout = "The node is under heavy pressure, please try again later"
	// ErrSQLTimeoutCode code for sql timeout error
	ErrSQLTimeoutCode apiErrorCode = 3
	// ErrSQLTimeoutType type for sql timeout type
	ErrSQLTimeoutType apiErrorType = "ErrSQLTimeout"

	// ErrSQLNoRowsCode code for no rows error
	ErrSQLNoRowsCode apiErrorCode = 4
	// ErrSQLNoRowsType type for now rows error
	ErrSQLNoRowsType apiErrorType = "ErrSQLNoRows"

	// ErrUnauthorizedCode code for callers lacking a role or allowlisting
	ErrUnauthorizedCode apiErrorCode = 5
	// ErrUnauthorizedType type for callers lacking a role or allowlisting
	ErrUnauthorizedType apiErrorType = "ErrUnauthorized"

	// ErrStateConflictCode code for operations rejected in the current state
	ErrStateConflictCode apiErrorCode = 6
	// ErrStateConflictType type for operations rejected in the current state
	ErrStateConflictType apiErrorType = "ErrStateConflict"

	// ErrStaleRateCode code for operations rejected because of stale oracle
	// data
	ErrStaleRateCode apiErrorCode = 7
	// ErrStaleRateType type for operations rejected because of stale oracle
	// data
	ErrStaleRateType apiErrorType = "ErrStaleRate"

	// ErrRejectedCode code for operations rejected because of their amounts
	ErrRejectedCode apiErrorCode = 8
	// ErrRejectedType type for operations rejected because of their amounts
	ErrRejectedType apiErrorType = "ErrRejected"

	// ErrNotFoundCode code for unknown batches
	ErrNotFoundCode apiErrorCode = 9
	// ErrNotFoundType type for unknown batches
	ErrNotFoundType apiErrorType = "ErrNotFound"

	// ErrInternalCode code for unexpected errors
	ErrInternalCode apiErrorCode = 10
	// ErrInternalType type for unexpected errors
	ErrInternalType apiErrorType = "ErrInternal"

	// ErrUnauthenticatedCode code for requests with a bad signature or a
	// used nonce
	ErrUnauthenticatedCode apiErrorCode = 11
	// ErrUnauthenticatedType type for requests with a bad signature or a
	// used nonce
	ErrUnauthenticatedType apiErrorType = "ErrUnauthenticated"

	// Internal error messages (used for logs or handling errors returned from internal components)

	// errCtxTimeout error message received internally when context reaches timeout
	errCtxTimeout = "context deadline exceeded"
)

type apiError struct {
	Err  error
	Code apiErrorCode
	Type apiErrorType
}

type apiErrorResponse struct {
	Message string       `json:"message"`
	Code    apiErrorCode `json:"code"`
	Type    apiErrorType `json:"type"`
}

func (a apiError) Error() string {
	return a.Err.Error()
}

type opErrorClass struct {
	status int
	code   apiErrorCode
	typ    apiErrorType
	errs   []error
}

// opErrorClasses maps the errors of the settlement components to responses
var opErrorClasses = []opErrorClass{
	{http.StatusForbidden, ErrUnauthorizedCode, ErrUnauthorizedType, []error{
		common.ErrUnauthorized,
		common.ErrNotAllowlisted,
	}},
	{http.StatusNotFound, ErrNotFoundCode, ErrNotFoundType, []error{
		common.ErrBatchNotFinalized,
		common.ErrNoWithdrawingBatch,
	}},
	{http.StatusConflict, ErrStateConflictCode, ErrStateConflictType, []error{
		common.ErrPaused,
		common.ErrLockStillHeld,
		common.ErrAlreadyLocked,
		common.ErrNotLocked,
		common.ErrWithdrawingBatchExists,
		common.ErrCollectedDecrease,
		common.ErrFeePeriodNotElapsed,
		common.ErrBatchStillRedeemable,
		common.ErrRateNotIncreased,
	}},
	{http.StatusServiceUnavailable, ErrStaleRateCode, ErrStaleRateType, []error{
		common.ErrExchangeRateStale,
		common.ErrInvalidRate,
	}},
	{http.StatusUnprocessableEntity, ErrRejectedCode, ErrRejectedType, []error{
		common.ErrZeroAmount,
		common.ErrCapExceeded,
		common.ErrFeeOutOfRange,
		common.ErrSlippage,
		common.ErrInsufficientBalance,
		common.ErrRedemptionTokenSupplyIsZero,
		common.ErrMultiBatchRedemption,
	}},
}

// retOpErr returns the response of a failed operation
func retOpErr(err error, c *gin.Context) {
	for _, class := range opErrorClasses {
		for _, target := range class.errs {
			if common.IsErr(err, target) {
				log.Debugw("HTTP API operation rejected", "err", err)
				c.JSON(class.status, apiErrorResponse{
					Message: tracerr.Unwrap(err).Error(),
					Code:    class.code,
					Type:    class.typ,
				})
				return
			}
		}
	}
	log.Warnw("HTTP API operation error", "err", err)
	metric.CollectError(tracerr.Unwrap(err))
	c.JSON(http.StatusInternalServerError, apiErrorResponse{
		Message: tracerr.Unwrap(err).Error(),
		Code:    ErrInternalCode,
		Type:    ErrInternalType,
	})
}

func retSQLErr(err error, c *gin.Context) {
	log.Warnw("HTTP API SQL request error", "err", err)
	unwrapErr := tracerr.Unwrap(err)
	metric.CollectError(unwrapErr)
	errMsg := unwrapErr.Error()
	if errMsg == errCtxTimeout {
		c.JSON(http.StatusServiceUnavailable, apiErrorResponse{
			Message: ErrSQLTimeout,
			Code:    ErrSQLTimeoutCode,
			Type:    ErrSQLTimeoutType,
		})
	} else if errors.Is(unwrapErr, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, apiErrorResponse{
			Message: errMsg,
			Code:    ErrSQLNoRowsCode,
			Type:    ErrSQLNoRowsType,
		})
	} else {
		c.JSON(http.StatusInternalServerError, apiErrorResponse{
			Message: errMsg,
			Code:    ErrInternalCode,
			Type:    ErrInternalType,
		})
	}
}

func retBadReq(err error, c *gin.Context) {
	log.Warnw("HTTP API Bad request error", "err", err)
	metric.CollectError(tracerr.Unwrap(err))
	c.JSON(http.StatusBadRequest, apiErrorResponse{
		Message: tracerr.Unwrap(err).Error(),
		Code:    ErrParamValidationFailedCode,
		Type:    ErrParamValidationFailedType,
	})
}
