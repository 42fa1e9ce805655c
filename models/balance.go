package models

// StakedAsset is one valued asset offered as part of a stake proposal.
// The value is supplied by the caller in minor currency units; pricing is
// outside this system.
type StakedAsset struct {
	AssetID string `json:"asset_id"`
	Name    string `json:"name"`
	Value   int64  `json:"value"`
}

// StakeProposal is one side's proposed stake: a set of valued assets plus a
// cash contribution
type StakeProposal struct {
	Assets []StakedAsset `json:"assets"`
	Cash   int64         `json:"cash"`
}

// Total returns the proposal's combined value
func (p StakeProposal) Total() int64 {
	total := p.Cash
	for _, a := range p.Assets {
		total += a.Value
	}
	return total
}

// BalancedStake is the balancer's view of one side after evaluation
type BalancedStake struct {
	Side             WagerSide     `json:"side"`
	Players          []StakedAsset `json:"players"`
	CashContribution int64         `json:"cash_contribution"`
	Total            int64         `json:"total"`
}

// TopUp describes the additional cash a side owes to restore balance
type TopUp struct {
	RequiredBy WagerSide `json:"required_by"`
	Amount     int64     `json:"amount"`
}

// BalanceResult is the transient output of the value balancer; it is never
// persisted
type BalanceResult struct {
	Balanced    bool          `json:"balanced"`
	Creator     BalancedStake `json:"creator"`
	Opponent    BalancedStake `json:"opponent"`
	TotalValue  int64         `json:"total_value"`
	Difference  int64         `json:"difference"`
	Tolerance   int64         `json:"tolerance"`
	TopUp       *TopUp        `json:"top_up,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty"`
}
