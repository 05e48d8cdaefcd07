package config

import (
	"fmt"
	"io/ioutil"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/go-playground/validator.v9"
)

// Duration is a wrapper type that parses time duration from text.
type Duration struct {
	time.Duration `validate:"required"`
}

// UnmarshalText unmarshalls time duration from text.
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err != nil {
		return tracerr.Wrap(err)
	}
	d.Duration = duration
	return nil
}

// BigInt is a wrapper type that parses a base 10 *big.Int from text. It is
// used for 1e18 fixed point values and token amounts.
type BigInt struct {
	*big.Int
}

// UnmarshalText unmarshalls a base 10 integer from text. Underscores can be
// used as digit separators.
func (b *BigInt) UnmarshalText(data []byte) error {
	s := strings.ReplaceAll(strings.TrimSpace(string(data)), "_", "")
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return tracerr.Wrap(fmt.Errorf("invalid integer %q", string(data)))
	}
	b.Int = v
	return nil
}

// Value returns the wrapped *big.Int, or zero when unset
func (b BigInt) Value() *big.Int {
	if b.Int == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b.Int)
}

// Settlement is the configuration of the settlement engine and the addresses
// of the accounts it interacts with
type Settlement struct {
	// Owner is the account allowed to run the admin operations
	Owner ethCommon.Address `validate:"required"`
	// Operators are the accounts allowed to call tick and finalize
	Operators []ethCommon.Address
	// Engine is the account holding the local asset pool
	Engine ethCommon.Address `validate:"required"`
	// RedemptionManager is the account holding the settled funds
	RedemptionManager ethCommon.Address `validate:"required"`
	// FeeAccrual is the account receiving the minted protocol fees
	FeeAccrual ethCommon.Address `validate:"required"`
	// FeeCollector receives the fee skimmed on every withdrawal pass
	FeeCollector ethCommon.Address `validate:"required"`
	// DepositForwarder receives the surplus balance forwarded to custody
	DepositForwarder ethCommon.Address `validate:"required"`
	// CustodyLock is the account of the custody lock
	CustodyLock ethCommon.Address `validate:"required"`
	// Custodians hold the lock role together with the engine
	Custodians []ethCommon.Address
	// Allowlist is the initial list of allowlisted accounts
	Allowlist []ethCommon.Address
	// DepositCost is the 1e18 fixed point cost charged on deposits
	DepositCost BigInt
	// WithdrawalCost is the 1e18 fixed point cost charged on withdrawals
	WithdrawalCost BigInt
	// StaleThreshold is the maximum age of the oracle data
	StaleThreshold Duration `validate:"required"`
	// DepositCap bounds AUM plus deposit, in asset units
	DepositCap BigInt
	// DepositCapEnabled enables the deposit cap
	DepositCapEnabled bool
	// Paused starts the engine paused
	Paused bool
}

// Fee is the configuration of the fee accrual
type Fee struct {
	// Period is the minimum time between fee collections
	Period Duration `validate:"required"`
	// FeeReductionPct is the 1e18 fixed point share of the rate gain
	// taken as fee
	FeeReductionPct BigInt
	// InitialRate is the exchange rate of reference for the first
	// collection
	InitialRate BigInt
}

// Assets describes the precision of the tokens
type Assets struct {
	AssetDecimals     uint8 `validate:"required"`
	SyntheticDecimals uint8 `validate:"required"`
}

// Oracle is the configuration of the exchange rate oracle. When URL is empty
// the Static values are served.
type Oracle struct {
	URL     string
	APIKey  string
	Timeout Duration
	Static  struct {
		Twaer       BigInt
		Latest      BigInt
		Aum         BigInt
		AumDecimals uint8
	}
}

// PostgreSQL is the postgreSQL configuration parameters
type PostgreSQL struct {
	Port     int
	Host     string
	User     string
	Password string
	Name     string
}

// SQLite configures the alternative embedded SQL backend. It is used when
// Path is set.
type SQLite struct {
	Path string
}

// Operator is the configuration of the operator loop
type Operator struct {
	// Address is the account the loop acts as
	Address ethCommon.Address `validate:"required"`
	// TickInterval is the waiting interval between ticks without progress
	TickInterval Duration `validate:"required"`
	// TickRetryInterval is the waiting interval after a reverted tick
	TickRetryInterval Duration `validate:"required"`
	// FeeCollectInterval is the waiting interval between fee collections
	// attempts. Set to 0s to disable them.
	FeeCollectInterval Duration `validate:"-"`
	// Attempts is the number of attempts for a reverted tick before
	// waiting for the next interval
	Attempts int `validate:"required,gte=1"`
}

// APIConfigParameters specifies the configuration parameters of the API
type APIConfigParameters struct {
	// Address where the API will listen if set
	Address string
	// Explorer enables the query endpoints
	Explorer bool
	// MaxConnections bounds the simultaneous http connections. 0 means
	// unlimited.
	MaxConnections int `validate:"gte=0"`
	// Maximum concurrent connections allowed between API and SQL
	MaxSQLConnections int `validate:"required,gte=1"`
	// SQLConnectionTimeout is the maximum amount of time that an API request
	// can wait to establish a SQL connection
	SQLConnectionTimeout Duration `validate:"-"`
}

// NodeDebug specifies debug configuration parameters
type NodeDebug struct {
	// APIAddress is the address where the debugAPI will listen if
	// set
	APIAddress string
	// MeddlerLogs enables meddler debug mode
	MeddlerLogs bool
	// GinDebugMode sets Gin-Gonic (the web framework) to run in
	// debug mode
	GinDebugMode bool
	// Faucet enables funding accounts through the debug API
	Faucet bool
}

// LogConf specifies the log configuration parameters
type LogConf struct {
	Level string
	Out   []string
	// ErrorsFile is the file where the error logs are also written. Empty
	// disables it.
	ErrorsFile string
}

// Node is the vault node configuration.
type Node struct {
	Log        LogConf    `validate:"-"`
	Settlement Settlement `validate:"required"`
	Fee        Fee        `validate:"required"`
	Assets     Assets     `validate:"required"`
	Oracle     Oracle     `validate:"-"`
	PostgreSQL PostgreSQL `validate:"-"`
	SQLite     SQLite     `validate:"-"`
	StateDB    struct {
		// Path where the world state checkpoints are stored
		Path string `validate:"required"`
		// Keep is the number of checkpoints to keep
		Keep int `validate:"required,gte=1"`
	} `validate:"required"`
	Operator Operator            `validate:"required"`
	API      APIConfigParameters `validate:"required"`
	Debug    NodeDebug           `validate:"-"`
}

// LoadNode loads the Node configuration from path. Values are read in
// order from the defaults, the file at path, a `.env` file next to the
// working directory (if any) and the environment (see applyEnv).
func LoadNode(path string) (*Node, error) {
	var cfg Node
	if _, err := toml.Decode(DefaultValues, &cfg); err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error decoding default values: %w", err))
	}
	bs, err := ioutil.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if _, err := toml.Decode(string(bs), &cfg); err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error decoding configuration file: %w", err))
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, tracerr.Wrap(fmt.Errorf("error loading .env file: %w", err))
	}
	if err := applyEnv(&cfg, os.Environ()); err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error reading environment: %w", err))
	}
	if err := Validate(&cfg); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &cfg, nil
}

// Validate checks the struct tags of the configuration and the ranges of the
// fixed point values
func Validate(cfg *Node) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return tracerr.Wrap(fmt.Errorf("error validating configuration file: %w", err))
	}
	for name, v := range map[string]BigInt{
		"Settlement.DepositCost":    cfg.Settlement.DepositCost,
		"Settlement.WithdrawalCost": cfg.Settlement.WithdrawalCost,
		"Fee.FeeReductionPct":       cfg.Fee.FeeReductionPct,
	} {
		if v.Value().Sign() < 0 || v.Value().Cmp(big.NewInt(1e18)) >= 0 {
			return tracerr.Wrap(fmt.Errorf("%s must be in [0, 1e18), got %v", name, v.Value()))
		}
	}
	if cfg.SQLite.Path == "" && cfg.PostgreSQL.Host == "" {
		return tracerr.Wrap(fmt.Errorf("either PostgreSQL or SQLite must be configured"))
	}
	return nil
}

// EnvPrefix is the prefix of the environment variables overriding the
// configuration
const EnvPrefix = "VAULTNODE_"

// envValues returns the environment variables with EnvPrefix as a nested map
// following the configuration sections: VAULTNODE_OPERATOR_TICKINTERVAL is
// returned as {"OPERATOR": {"TICKINTERVAL": value}}
func envValues(environ []string) map[string]interface{} {
	values := make(map[string]interface{})
	for _, kv := range environ {
		parts := strings.SplitN(kv, "=", 2) //nolint:gomnd
		if len(parts) != 2 || !strings.HasPrefix(parts[0], EnvPrefix) {
			continue
		}
		path := strings.Split(strings.TrimPrefix(parts[0], EnvPrefix), "_")
		m := values
		for _, section := range path[:len(path)-1] {
			next, ok := m[section].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				m[section] = next
			}
			m = next
		}
		m[path[len(path)-1]] = parts[1]
	}
	return values
}

// applyEnv overrides cfg with the environment variables with EnvPrefix.
// Field names are matched case insensitively, lists are comma separated.
func applyEnv(cfg *Node, environ []string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		// lists replace the configured ones instead of being merged
		ZeroFields: true,
		Result:     cfg,
	})
	if err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(decoder.Decode(envValues(environ)))
}
