package eth

// Client bundles the collaborators consumed by the settlement components
type Client struct {
	Oracle      ExchangeRateOracle
	Allowlist   Allowlist
	Asset       Token
	Synthetic   Token
	Receipt     RedemptionReceipt
	CustodyLock CustodyLock
}
