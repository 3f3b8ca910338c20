package web

import (
	"math/rand/v2"
	"sync/atomic"
)

// DefaultUserAgents is the pool used when none is configured. Some score
// providers throttle per agent.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 15_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 15_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:143.0) Gecko/20100101 Firefox/143.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36 Edg/140.0.0.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 18_6_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 15; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Mobile Safari/537.36",
}

// agentPool hands out user agents round robin. With jitter > 0 that share of
// picks is drawn at random instead.
type agentPool struct {
	agents []string
	jitter float64
	next   atomic.Uint64
}

func newAgentPool(agents []string, jitter float64) *agentPool {
	pool := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != "" {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		pool = DefaultUserAgents
	}
	return &agentPool{agents: pool, jitter: jitter}
}

func (p *agentPool) pick() string {
	n := uint64(len(p.agents))
	if n == 1 {
		return p.agents[0]
	}
	if p.jitter > 0 && rand.Float64() < p.jitter {
		return p.agents[rand.Uint64N(n)]
	}
	return p.agents[(p.next.Add(1)-1)%n]
}
