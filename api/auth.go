package api

import (
	"bytes"
	"errors"
	"io/ioutil"
	"net/http"
	"strconv"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/api/parsers"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/log"
)

const (
	// CallerHeader is the header identifying the account a call is made as
	CallerHeader = "X-Caller"
	// NonceHeader is the header holding the request nonce of the caller
	NonceHeader = "X-Nonce"
	// SignatureHeader is the header holding the hex encoded signature of
	// the request by the caller
	SignatureHeader = "X-Signature"

	callerKey = "caller"
)

// parseCallerAuth reads the authentication headers and the body of a request
func parseCallerAuth(c *gin.Context) (*common.CallerAuth, error) {
	header := c.GetHeader(CallerHeader)
	if header == "" {
		return nil, tracerr.Wrap(errors.New("missing " + CallerHeader + " header"))
	}
	from, err := parsers.ParseAddress(header)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	nonce, err := strconv.ParseUint(c.GetHeader(NonceHeader), 10, 64)
	if err != nil {
		return nil, tracerr.Wrap(errors.New("invalid " + NonceHeader + " header"))
	}
	sig, err := hexutil.Decode(c.GetHeader(SignatureHeader))
	if err != nil {
		return nil, tracerr.Wrap(errors.New("invalid " + SignatureHeader + " header"))
	}
	body, err := c.GetRawData()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	// the handlers bind the body again
	c.Request.Body = ioutil.NopCloser(bytes.NewReader(body))
	return &common.CallerAuth{
		Caller:    from,
		Nonce:     nonce,
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Body:      body,
		Signature: sig,
	}, nil
}

// authenticate is the middleware of the state changing endpoints. It sets
// the caller only when the request is signed by it with a fresh nonce.
func (a *API) authenticate(c *gin.Context) {
	req, err := parseCallerAuth(c)
	if err != nil {
		retBadReq(err, c)
		c.Abort()
		return
	}
	if err := a.authorizer.Authenticate(req); err != nil {
		if !common.IsErr(err, common.ErrInvalidSignature) && !common.IsErr(err, common.ErrNonceUsed) {
			retOpErr(err, c)
			c.Abort()
			return
		}
		log.Warnw("HTTP API unauthenticated request", "caller", req.Caller.Hex(),
			"path", req.Path, "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, apiErrorResponse{
			Message: tracerr.Unwrap(err).Error(),
			Code:    ErrUnauthenticatedCode,
			Type:    ErrUnauthenticatedType,
		})
		return
	}
	c.Set(callerKey, req.Caller)
	c.Next()
}

// caller returns the account authenticated by the middleware
func caller(c *gin.Context) (ethCommon.Address, error) {
	v, ok := c.Get(callerKey)
	if !ok {
		return ethCommon.Address{}, tracerr.Wrap(errors.New("unauthenticated request"))
	}
	return v.(ethCommon.Address), nil
}
