package staking

import "math/big"

// balanceAt resolves the balance carried into snapshot id using the nearest
// checkpoint at or before it.
func balanceAt(points []Checkpoint, id uint64) *big.Int {
	balance := big.NewInt(0)
	for _, p := range points {
		if p.Epoch > id {
			break
		}
		balance = p.Balance
	}
	return new(big.Int).Set(balance)
}

// averageOver returns the mean balance across the inclusive snapshot range
// [min,max]. Both the on-demand and the cached period averages go through it.
func averageOver(points []Checkpoint, min, max uint64) *big.Int {
	sum := new(big.Int)
	current := big.NewInt(0)
	idx := 0
	for idx < len(points) && points[idx].Epoch <= min {
		current = points[idx].Balance
		idx++
	}
	from := min
	for idx < len(points) && points[idx].Epoch <= max {
		span := new(big.Int).SetUint64(points[idx].Epoch - from)
		sum.Add(sum, new(big.Int).Mul(current, span))
		current = points[idx].Balance
		from = points[idx].Epoch
		idx++
	}
	tail := new(big.Int).SetUint64(max - from + 1)
	sum.Add(sum, new(big.Int).Mul(current, tail))
	count := new(big.Int).SetUint64(max - min + 1)
	return sum.Quo(sum, count)
}

// record stores balance as the value carried into epoch, collapsing writes
// made before the same snapshot.
func record(points []Checkpoint, epoch uint64, balance *big.Int) []Checkpoint {
	value := new(big.Int).Set(balance)
	if n := len(points); n > 0 && points[n-1].Epoch == epoch {
		points[n-1].Balance = value
		return points
	}
	return append(points, Checkpoint{Epoch: epoch, Balance: value})
}
