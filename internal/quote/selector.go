package quote

import "github.com/alanyoungcy/peerquote/internal/domain"

// SelectBest returns the result with the smallest sender amount, i.e. the
// least the requester has to pay. On a tie the earliest entry wins, so the
// outcome follows collection order. ok is false when results is empty.
func SelectBest(results []domain.PeerResult) (best domain.PeerResult, ok bool) {
	if len(results) == 0 {
		return domain.PeerResult{}, false
	}
	best = results[0]
	for _, r := range results[1:] {
		if r.Quote.SenderAmount().Cmp(best.Quote.SenderAmount()) < 0 {
			best = r
		}
	}
	return best, true
}
