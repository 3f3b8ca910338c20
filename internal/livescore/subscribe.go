package livescore

import (
	"context"
	"time"
)

// Subscribe follows one fixture. The current score, or nil when no record
// matches, is sent right away and then again whenever it changes; the store
// is re-read every MatchPoll. Subscribing kicks a cooldown-gated refresh in
// the background. When isLive is false a single nil is sent and the channel
// is closed. Otherwise the channel is closed once ctx is done.
func (o *Overlay) Subscribe(ctx context.Context, home, away string, isLive bool) <-chan *MatchScore {
	ch := make(chan *MatchScore, 1)
	if !isLive {
		ch <- nil
		close(ch)
		return ch
	}

	go func() {
		if _, err := o.Refresh(ctx); err != nil {
			o.opts.Logger.Debug("subscription refresh skipped")
		}
	}()

	go func() {
		defer close(ch)
		ticker := time.NewTicker(o.opts.MatchPoll)
		defer ticker.Stop()

		var last *MatchScore
		sent := false
		for {
			cur := o.MatchScore(home, away, true)
			if !sent || !sameScore(last, cur) {
				select {
				case ch <- cur:
				case <-ctx.Done():
					return
				}
				last, sent = cur, true
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch
}

func sameScore(a, b *MatchScore) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
