package common

import (
	"fmt"

	"github.com/hermeznetwork/tracerr"
)

// ContractState is the register of the settlement state machine
type ContractState uint8

const (
	// StateIdle waits for burns or surplus deposits
	StateIdle ContractState = iota
	// StateDepositLeg1 waits for the custodian to release the deposit lock
	StateDepositLeg1
	// StateDepositLeg2 is an unobservable stage of the external deposit leg
	StateDepositLeg2
	// StateDepositLeg3 is the last stage of the external deposit leg
	StateDepositLeg3
	// StateWithdrawLeg1 is the first stage after parking a withdrawing batch
	StateWithdrawLeg1
	// StateWithdrawLeg2 collects the funds returned by the custodian
	StateWithdrawLeg2
	// StateWithdrawLeg3 finalizes the withdrawing batch
	StateWithdrawLeg3
)

var contractStateNames = map[ContractState]string{
	StateIdle:         "Idle",
	StateDepositLeg1:  "DepositLeg1",
	StateDepositLeg2:  "DepositLeg2",
	StateDepositLeg3:  "DepositLeg3",
	StateWithdrawLeg1: "WithdrawLeg1",
	StateWithdrawLeg2: "WithdrawLeg2",
	StateWithdrawLeg3: "WithdrawLeg3",
}

func (s ContractState) String() string {
	if name, ok := contractStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ContractState(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler
func (s ContractState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *ContractState) UnmarshalText(text []byte) error {
	for state, name := range contractStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return tracerr.Wrap(fmt.Errorf("invalid contract state %q", string(text)))
}
