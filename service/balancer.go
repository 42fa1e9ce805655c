package service

import (
	"fmt"

	"wagerbook/models"
)

// ToleranceBps is the balancing tolerance in basis points of the larger
// side's total. Two stakes within this margin are considered fair without an
// exact match.
const ToleranceBps int64 = 200 // 2%

// BalanceStakes computes whether two proposed stakes are of equivalent value
// within tolerance. It is a pure function of its inputs: no I/O, no hidden
// state, safe to call any number of times from concurrent requests.
//
// Per side, total = sum of asset values + cash. The stakes balance when
// |creatorTotal - opponentTotal| <= max(creatorTotal, opponentTotal) * 2%.
// Otherwise the smaller side owes the difference in additional cash.
func BalanceStakes(creator, opponent models.StakeProposal) (*models.BalanceResult, error) {
	if err := validateProposal("creator stake", creator); err != nil {
		return nil, err
	}
	if err := validateProposal("opponent stake", opponent); err != nil {
		return nil, err
	}

	creatorTotal := creator.Total()
	opponentTotal := opponent.Total()

	diff := creatorTotal - opponentTotal
	if diff < 0 {
		diff = -diff
	}

	larger := creatorTotal
	if opponentTotal > larger {
		larger = opponentTotal
	}
	tolerance := larger * ToleranceBps / 10000

	result := &models.BalanceResult{
		Creator: models.BalancedStake{
			Side:             models.SideCreator,
			Players:          creator.Assets,
			CashContribution: creator.Cash,
			Total:            creatorTotal,
		},
		Opponent: models.BalancedStake{
			Side:             models.SideOpponent,
			Players:          opponent.Assets,
			CashContribution: opponent.Cash,
			Total:            opponentTotal,
		},
		TotalValue: creatorTotal + opponentTotal,
		Difference: diff,
		Tolerance:  tolerance,
	}

	if diff <= tolerance {
		result.Balanced = true
		return result, nil
	}

	owing := models.SideCreator
	if creatorTotal > opponentTotal {
		owing = models.SideOpponent
	}
	result.TopUp = &models.TopUp{
		RequiredBy: owing,
		Amount:     diff,
	}
	result.Suggestions = []string{
		fmt.Sprintf("add %d in cash to the %s side", diff, owing),
		"swap an asset for one of comparable value to narrow the gap",
		"asset values lock at match time to prevent manipulation",
	}

	return result, nil
}

func validateProposal(field string, p models.StakeProposal) error {
	if p.Cash < 0 {
		return &ValidationError{Field: field, Reason: "cash amount cannot be negative"}
	}
	for _, a := range p.Assets {
		if a.AssetID == "" {
			return &ValidationError{Field: field, Reason: "asset is missing an id"}
		}
		if a.Value < 0 {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("asset %s has a negative value", a.AssetID)}
		}
	}
	return nil
}
