package ledger

import (
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/common"
)

// TokenState is the journaled state of a Token
type TokenState struct {
	Supply   *big.Int
	Balances map[ethCommon.Address]*big.Int
}

// Token is an in-process fungible token. Its methods are not journaled and
// must run inside journal.Journal.Atomic when they mutate.
type Token struct {
	name     string
	decimals uint8
	st       *TokenState
}

// NewToken creates an empty Token
func NewToken(name string, decimals uint8) *Token {
	return &Token{
		name:     name,
		decimals: decimals,
		st: &TokenState{
			Supply:   big.NewInt(0),
			Balances: make(map[ethCommon.Address]*big.Int),
		},
	}
}

// Name implements journal.Component
func (t *Token) Name() string { return t.name }

// State implements journal.Component
func (t *Token) State() interface{} { return t.st }

// SetState implements journal.Component
func (t *Token) SetState(state interface{}) { t.st = state.(*TokenState) }

// Decimals returns the precision of the token
func (t *Token) Decimals() uint8 {
	return t.decimals
}

// TotalSupply returns the total supply
func (t *Token) TotalSupply() *big.Int {
	return new(big.Int).Set(t.st.Supply)
}

// BalanceOf returns the balance of addr
func (t *Token) BalanceOf(addr ethCommon.Address) *big.Int {
	return common.CopyBigInt(t.st.Balances[addr])
}

func (t *Token) balance(addr ethCommon.Address) *big.Int {
	b, ok := t.st.Balances[addr]
	if !ok {
		b = big.NewInt(0)
		t.st.Balances[addr] = b
	}
	return b
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return tracerr.Wrap(fmt.Errorf("invalid amount %v", amount))
	}
	return nil
}

// Transfer moves amount from `from` to `to`
func (t *Token) Transfer(from, to ethCommon.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return tracerr.Wrap(err)
	}
	fromBalance := t.balance(from)
	if fromBalance.Cmp(amount) < 0 {
		return tracerr.Wrap(fmt.Errorf("%w: %v transfer of %v from %v with balance %v",
			common.ErrInsufficientBalance, t.name, amount, from.Hex(), fromBalance))
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance := t.balance(to)
	toBalance.Add(toBalance, amount)
	return nil
}

// Mint creates amount tokens owned by `to`
func (t *Token) Mint(to ethCommon.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return tracerr.Wrap(err)
	}
	toBalance := t.balance(to)
	toBalance.Add(toBalance, amount)
	t.st.Supply.Add(t.st.Supply, amount)
	return nil
}

// Burn destroys amount tokens owned by `from`
func (t *Token) Burn(from ethCommon.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return tracerr.Wrap(err)
	}
	fromBalance := t.balance(from)
	if fromBalance.Cmp(amount) < 0 {
		return tracerr.Wrap(fmt.Errorf("%w: %v burn of %v from %v with balance %v",
			common.ErrInsufficientBalance, t.name, amount, from.Hex(), fromBalance))
	}
	fromBalance.Sub(fromBalance, amount)
	t.st.Supply.Sub(t.st.Supply, amount)
	return nil
}
