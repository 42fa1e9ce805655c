package models

import "time"

// WagerSide identifies which side of a wager an asset belongs to
type WagerSide string

const (
	SideCreator  WagerSide = "CREATOR"
	SideOpponent WagerSide = "OPPONENT"
)

// WagerAsset is one valued, lockable line item of a side's stake.
// LockedValue is the value snapshot taken at match time and is immutable
// afterwards; CurrentValue may drift and is for display only.
type WagerAsset struct {
	ID           int64     `db:"id"`
	WagerID      int64     `db:"wager_id"`
	AssetID      string    `db:"asset_id"`
	Name         string    `db:"name"`
	Side         WagerSide `db:"side"`
	LockedValue  int64     `db:"locked_value"`
	CurrentValue int64     `db:"current_value"`
	IsDisposed   bool      `db:"is_disposed"`
	CreatedAt    time.Time `db:"created_at"`
}
