package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// PeerResult is a validated quote together with the peer that produced it.
type PeerResult struct {
	Locator string `json:"locator"`
	Quote   Quote  `json:"-"`
}

// PeerError records why a single peer did not contribute a result.
type PeerError struct {
	Locator string `json:"locator"`
	Message string `json:"message"`
}

// PeerOutcome is what the aggregator observes for one dispatched call.
// Exactly one of Quote and Err is set.
type PeerOutcome struct {
	Locator string
	Quote   *Quote
	Err     error
}

// AggregationResult is produced once per round, after every dispatched call
// has resolved.
type AggregationResult struct {
	RoundID    string
	Requested  int
	Best       *Quote
	Locator    string
	Results    []PeerResult
	Errors     []PeerError
	NextCursor common.Address
}

// HasWinner reports whether any peer returned a valid quote.
func (r AggregationResult) HasWinner() bool {
	return r.Best != nil
}
