package node

import (
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/auth"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/config"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
	"github.com/vaultbridge/vaultbridge-node/eth"
	"github.com/vaultbridge/vaultbridge-node/feeaccrual"
	"github.com/vaultbridge/vaultbridge-node/journal"
	"github.com/vaultbridge/vaultbridge-node/ledger"
	"github.com/vaultbridge/vaultbridge-node/log"
	"github.com/vaultbridge/vaultbridge-node/redemption"
	"github.com/vaultbridge/vaultbridge-node/settlement"
)

// Components are the settlement components of a node sharing one journal
type Components struct {
	Journal    *journal.Journal
	Ledger     *ledger.Ledger
	Authorizer *auth.Authorizer
	Oracle     eth.ExchangeRateOracle
	Engine     *settlement.Engine
	Manager    *redemption.Manager
	FeeAccrual *feeaccrual.FeeAccrual
}

// NewOracle returns the http oracle client when an URL is configured and
// the static oracle otherwise
func NewOracle(cfg *config.Oracle) eth.ExchangeRateOracle {
	if cfg.URL != "" {
		return eth.NewOracleClient(cfg.URL, cfg.APIKey, cfg.Timeout.Duration)
	}
	log.Warn("No oracle URL configured, serving the static oracle values")
	return eth.NewStaticOracle(cfg.Static.Twaer.Value(), cfg.Static.Latest.Value(),
		cfg.Static.Aum.Value(), cfg.Static.AumDecimals)
}

// NewComponents creates the settlement components described by cfg and
// grants the configured roles
func NewComponents(cfg *config.Node, oracle eth.ExchangeRateOracle) (*Components, error) {
	s := &cfg.Settlement
	j := journal.NewJournal()
	l := ledger.NewLedger(j, ledger.Config{
		AssetDecimals:     cfg.Assets.AssetDecimals,
		SyntheticDecimals: cfg.Assets.SyntheticDecimals,
		CustodyLock:       s.CustodyLock,
		Beneficiary:       s.RedemptionManager,
		Allowlist:         s.Allowlist,
	})
	a := auth.NewAuthorizer(j, s.Owner, l.Allowlist)
	for _, op := range s.Operators {
		a.SetupOperator(op)
	}
	a.SetupOperator(cfg.Operator.Address)
	a.SetupLockRole(s.Engine)
	for _, custodian := range s.Custodians {
		a.SetupLockRole(custodian)
	}
	l.SetAuthority(a)

	client := l.Client(oracle)
	engine, err := settlement.NewEngine(j, a, client, settlement.Config{
		Address:           s.Engine,
		RedemptionManager: s.RedemptionManager,
		Params: settlement.Params{
			DepositCost:       s.DepositCost.Value(),
			WithdrawalCost:    s.WithdrawalCost.Value(),
			StaleThreshold:    s.StaleThreshold.Duration,
			DepositCap:        s.DepositCap.Value(),
			DepositCapEnabled: s.DepositCapEnabled,
			Paused:            s.Paused,
			DepositForwarder:  s.DepositForwarder,
			FeeCollector:      s.FeeCollector,
		},
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	manager := redemption.NewManager(j, a, client, engine, s.RedemptionManager)
	l.Receipt.RegisterReceiver(s.RedemptionManager, manager)
	fee, err := feeaccrual.NewFeeAccrual(j, a, client, feeaccrual.Config{
		Address:         s.FeeAccrual,
		Period:          cfg.Fee.Period.Duration,
		FeeReductionPct: cfg.Fee.FeeReductionPct.Value(),
		InitialRate:     cfg.Fee.InitialRate.Value(),
		StaleThreshold:  s.StaleThreshold.Duration,
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &Components{
		Journal:    j,
		Ledger:     l,
		Authorizer: a,
		Oracle:     oracle,
		Engine:     engine,
		Manager:    manager,
		FeeAccrual: fee,
	}, nil
}

// Restore loads the last stored world state into the components. It
// returns false when the StateDB is empty.
func (c *Components) Restore(stateDB *kvdb.KVDB) (bool, error) {
	states, err := stateDB.GetStates()
	if err != nil {
		return false, tracerr.Wrap(err)
	}
	if len(states) == 0 {
		return false, nil
	}
	if err := c.Journal.LoadStates(states); err != nil {
		return false, tracerr.Wrap(err)
	}
	return true, nil
}

// CheckpointHook stores the world state after every commit, and makes a
// checkpoint of it when the commit finalized batches
func (c *Components) CheckpointHook(stateDB *kvdb.KVDB) journal.CommitHook {
	return func(events []common.Event) error {
		states, err := c.Journal.EncodeStates()
		if err != nil {
			return tracerr.Wrap(err)
		}
		if err := stateDB.PutState(states, c.Journal.Now()); err != nil {
			return tracerr.Wrap(err)
		}
		var finalized []common.BatchID
		for _, event := range events {
			if event.Type == common.EventBatchFinalized {
				finalized = append(finalized, event.BatchID)
			}
		}
		if len(finalized) == 0 {
			return nil
		}
		return tracerr.Wrap(stateDB.MakeCheckpoint(finalized...))
	}
}
