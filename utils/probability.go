package utils

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Deck-odds calculators for the /draw and /combo commands. All
// combinatorics run over big integers so real deck sizes cannot
// overflow; the result is only collapsed to float64 at the end.

// maxComboTypes bounds the 2^m inclusion-exclusion expansion.
const maxComboTypes = 16

// choose returns C(n, k), treating any out-of-range argument as zero
// ways rather than an error.
func choose(n, k int) *big.Int {
	if k < 0 || n < 0 || n < k {
		return new(big.Int)
	}
	return new(big.Int).Binomial(int64(n), int64(k))
}

// HypergeometricAtLeast returns P(X >= requiredHits) for X drawn
// without replacement: successCount winners in a deck of deckSize,
// drawing drawCount cards.
func HypergeometricAtLeast(deckSize, successCount, drawCount, requiredHits int) (float64, error) {
	switch {
	case deckSize < 1:
		return 0, fmt.Errorf("%w: deck size must be at least 1", ErrArithmeticDomain)
	case successCount < 0:
		return 0, fmt.Errorf("%w: success count cannot be negative", ErrArithmeticDomain)
	case drawCount < 1:
		return 0, fmt.Errorf("%w: draw count must be at least 1", ErrArithmeticDomain)
	case requiredHits < 1:
		return 0, fmt.Errorf("%w: required hits must be at least 1", ErrArithmeticDomain)
	case successCount > deckSize:
		return 0, fmt.Errorf("%w: success count exceeds deck size", ErrArithmeticDomain)
	case drawCount > deckSize:
		return 0, fmt.Errorf("%w: draw count exceeds deck size", ErrArithmeticDomain)
	case requiredHits > successCount:
		return 0, fmt.Errorf("%w: required hits exceed success count", ErrArithmeticDomain)
	case requiredHits > drawCount:
		return 0, fmt.Errorf("%w: required hits exceed draw count", ErrArithmeticDomain)
	}

	denominator := choose(deckSize, drawCount)
	if denominator.Sign() == 0 {
		return 0, nil
	}

	numerator := new(big.Int)
	upper := min(drawCount, successCount)
	for i := requiredHits; i <= upper; i++ {
		term := choose(successCount, i)
		term.Mul(term, choose(deckSize-successCount, drawCount-i))
		numerator.Add(numerator, term)
	}

	p, _ := new(big.Rat).SetFrac(numerator, denominator).Float64()
	return p, nil
}

// ComboAtLeastOneEach returns the probability of drawing at least one
// copy of every listed card type in drawCount cards, by
// inclusion-exclusion over the "missed type" events.
func ComboAtLeastOneEach(deckSize, drawCount int, copiesPerType []int) (float64, error) {
	m := len(copiesPerType)
	switch {
	case deckSize < 1:
		return 0, fmt.Errorf("%w: deck size must be at least 1", ErrArithmeticDomain)
	case drawCount < 1:
		return 0, fmt.Errorf("%w: draw count must be at least 1", ErrArithmeticDomain)
	case m == 0:
		return 0, fmt.Errorf("%w: at least one card type is required", ErrArithmeticDomain)
	case m > maxComboTypes:
		return 0, fmt.Errorf("%w: at most %d card types are supported", ErrArithmeticDomain, maxComboTypes)
	case drawCount > deckSize:
		return 0, fmt.Errorf("%w: draw count exceeds deck size", ErrArithmeticDomain)
	}
	total := 0
	for _, c := range copiesPerType {
		if c <= 0 {
			return 0, fmt.Errorf("%w: copy counts must be positive", ErrArithmeticDomain)
		}
		total += c
	}
	if total > deckSize {
		return 0, fmt.Errorf("%w: copies exceed deck size", ErrArithmeticDomain)
	}

	denominator := choose(deckSize, drawCount)
	if denominator.Sign() == 0 {
		return 0, nil
	}

	// Ways to miss at least one type, alternating by subset parity.
	misses := new(big.Int)
	for mask := 1; mask < 1<<m; mask++ {
		excluded := 0
		for i := 0; i < m; i++ {
			if mask&(1<<i) != 0 {
				excluded += copiesPerType[i]
			}
		}
		term := choose(deckSize-excluded, drawCount)
		if bits.OnesCount(uint(mask))%2 == 1 {
			misses.Add(misses, term)
		} else {
			misses.Sub(misses, term)
		}
	}

	favorable := new(big.Int).Sub(denominator, misses)
	p, _ := new(big.Rat).SetFrac(favorable, denominator).Float64()
	return p, nil
}
