package projector

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
)

// ErrNothingToClaim is returned when a bettor has no unclaimed winning bet on a resolved proposal.
var ErrNothingToClaim = errors.New("nothing to claim")

// EstimatePayout returns floor(amount * (totalYes + totalNo - fee) / winningTotal),
// where winningTotal is totalYes for a true outcome and totalNo otherwise.
// The result is zero when winningTotal is zero. Nil inputs count as zero.
func EstimatePayout(amount, totalYes, totalNo, fee *big.Int, outcome bool) *big.Int {
	yes, no := orZero(totalYes), orZero(totalNo)

	winning := no
	if outcome {
		winning = yes
	}
	if winning.Sign() == 0 {
		return new(big.Int)
	}

	pool := new(big.Int).Add(yes, no)
	pool.Sub(pool, orZero(fee))

	payout := new(big.Int).Mul(orZero(amount), pool)
	return payout.Quo(payout, winning)
}

// ClaimablePayout estimates what bettor can still claim on proposalID.
func ClaimablePayout(ctx context.Context, reader storage.ProjectionReader, proposalID, bettor string) (*big.Int, error) {
	bettor = strings.ToLower(strings.TrimSpace(bettor))

	proposal, err := reader.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("load proposal %s: %w", proposalID, err)
	}
	if !proposal.Resolved || proposal.Outcome == nil {
		return nil, fmt.Errorf("proposal %s is not resolved: %w", proposalID, ErrNothingToClaim)
	}

	bet, err := reader.GetBet(ctx, proposalID, bettor)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s has no bet on proposal %s: %w", bettor, proposalID, ErrNothingToClaim)
	}
	if err != nil {
		return nil, fmt.Errorf("load bet: %w", err)
	}

	if bet.Claimed {
		return nil, fmt.Errorf("bet already claimed: %w", ErrNothingToClaim)
	}
	if bet.Side != *proposal.Outcome {
		return nil, fmt.Errorf("bet is on the losing side: %w", ErrNothingToClaim)
	}

	return EstimatePayout(bet.Amount, proposal.TotalYes, proposal.TotalNo, proposal.PlatformFee, *proposal.Outcome), nil
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

func bigString(n *big.Int) string {
	return orZero(n).String()
}

func sameAmount(a, b *big.Int) bool {
	return orZero(a).Cmp(orZero(b)) == 0
}
