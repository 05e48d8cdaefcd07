package config

// DefaultValues is the default configuration for the vault node
const DefaultValues = `
[Log]
Level = "info"
Out = ["stdout"]

[Settlement]
DepositCost = "0"
WithdrawalCost = "0"
StaleThreshold = "24h"
DepositCap = "0"
DepositCapEnabled = false
Paused = false

[Fee]
Period = "24h"
FeeReductionPct = "100000000000000000"
InitialRate = "1000000000000000000"

[Assets]
AssetDecimals = 8
SyntheticDecimals = 8

[Oracle]
Timeout = "10s"

[Oracle.Static]
Twaer = "1000000000000000000"
Latest = "1000000000000000000"
Aum = "0"
AumDecimals = 8

[StateDB]
Path = "/var/vaultnode/statedb"
Keep = 128

[Operator]
TickInterval = "30s"
TickRetryInterval = "60s"
FeeCollectInterval = "1h"
Attempts = 3

[API]
Address = "0.0.0.0:8086"
Explorer = true
MaxConnections = 1024
MaxSQLConnections = 100
SQLConnectionTimeout = "2s"

[Debug]
APIAddress = ""
MeddlerLogs = false
GinDebugMode = false
Faucet = false
`
