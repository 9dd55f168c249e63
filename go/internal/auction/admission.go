package auction

import (
	"github.com/draftpit/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
)

// Threshold below which bids move in half-credit steps; at or above it the
// step widens to a full credit.
var incrementBandCeiling = decimal.NewFromInt(10)

var (
	halfCredit = decimal.NewFromFloat(0.5)
	oneCredit  = decimal.NewFromInt(1)
)

// MinIncrement returns the required step over the current high bid.
// An opening bid (high bid zero) needs only the half-credit step.
func MinIncrement(highBid decimal.Decimal) decimal.Decimal {
	if highBid.LessThan(incrementBandCeiling) {
		return halfCredit
	}
	return oneCredit
}

// MaxAllowed returns the highest amount a participant may bid while still
// keeping the per-slot reserve for every roster slot left to fill after
// this one.
func MaxAllowed(settings models.GameSettings, budget decimal.Decimal, rosterSize int) decimal.Decimal {
	remainingSlots := settings.TeamCap - rosterSize - 1
	if remainingSlots < 0 {
		remainingSlots = 0
	}
	reserve := settings.PerSlotReserve.Mul(decimal.NewFromInt(int64(remainingSlots)))
	return budget.Sub(reserve)
}

// ValidateBid applies the admission rules in order; the first failing rule
// wins. It is a pure function: no side effects, so bid intake can apply the
// decision atomically under the game lock.
//
// Rule order: active lot, team-size cap, overseas cap, minimum increment,
// reserve budget.
func ValidateBid(
	settings models.GameSettings,
	cycle *models.AuctionCycle,
	lot *models.Lot,
	participant *models.Participant,
	roster []models.Lot,
	amount decimal.Decimal,
) *Error {
	if cycle.Status != models.CycleStatusOpen || cycle.CurrentLotID == nil {
		return NewError(CodeNoActiveLot, "no lot is currently open for bidding")
	}

	if len(roster) >= settings.TeamCap {
		return NewError(CodeTeamFull, "team already has %d players", settings.TeamCap)
	}

	if lot.Overseas {
		overseas := 0
		for _, owned := range roster {
			if owned.Overseas {
				overseas++
			}
		}
		if overseas >= settings.OverseasCap {
			return NewError(CodeNationalityCap, "team already has %d overseas players", settings.OverseasCap)
		}
	}

	minBid := cycle.HighBid.Add(MinIncrement(cycle.HighBid))
	if amount.LessThan(minBid) {
		return NewError(CodeBelowMinIncrement, "bid must be at least %s", minBid.String())
	}

	maxBid := MaxAllowed(settings, participant.BudgetRemaining, len(roster))
	if amount.GreaterThan(maxBid) {
		return NewError(CodeExceedsBudget, "bid may not exceed %s", maxBid.String())
	}

	return nil
}
