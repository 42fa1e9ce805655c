package testutil

import (
	"time"

	"wagerbook/models"

	"github.com/google/uuid"
)

// CreateTestEscrowAccount creates a pending escrow account with default amounts
func CreateTestEscrowAccount(creatorAmount, opponentAmount int64) *models.EscrowAccount {
	ref := "pi_test_creator"
	return &models.EscrowAccount{
		ID:                uuid.NewString(),
		CreatorAmount:     creatorAmount,
		OpponentAmount:    opponentAmount,
		TotalAmount:       creatorAmount + opponentAmount,
		Status:            models.EscrowStatusPending,
		CreatorPaymentRef: &ref,
	}
}

// CreateTestWager creates an open wager with sensible defaults. The escrow id
// must reference an existing escrow account row.
func CreateTestWager(creatorID, escrowID string) *models.Wager {
	now := time.Now()
	return &models.Wager{
		CreatorID:    creatorID,
		Type:         "HEAD_TO_HEAD",
		Timeframe:    "WEEK_5",
		StartDate:    now.Add(24 * time.Hour),
		EndDate:      now.Add(7 * 24 * time.Hour),
		IsPublic:     true,
		CreatorStake: 10000,
		TotalValue:   10000,
		Status:       models.WagerStatusOpen,
		EscrowID:     escrowID,
	}
}

// CreateTestMatchedWager creates a wager already matched with an opponent
func CreateTestMatchedWager(creatorID, opponentID, escrowID string) *models.Wager {
	wager := CreateTestWager(creatorID, escrowID)
	now := time.Now()
	wager.OpponentID = &opponentID
	wager.OpponentStake = 10000
	wager.TotalValue = 20000
	wager.Status = models.WagerStatusMatched
	wager.MatchedAt = &now
	return wager
}

// CreateTestAsset creates a staked asset row for a wager side
func CreateTestAsset(wagerID int64, assetID string, side models.WagerSide, value int64) *models.WagerAsset {
	return &models.WagerAsset{
		WagerID:      wagerID,
		AssetID:      assetID,
		Name:         "Asset " + assetID,
		Side:         side,
		LockedValue:  value,
		CurrentValue: value,
	}
}
