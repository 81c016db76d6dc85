package discovery

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// Strategy names a load-balancing policy.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
	StrategyWeighted   Strategy = "weighted"
)

// Selector picks one instance from a non-empty candidate list.
type Selector interface {
	Select(name string, candidates []ServiceInstance) ServiceInstance
}

// NewSelector returns the Selector for a strategy. The empty strategy is round-robin.
func NewSelector(s Strategy) (Selector, error) {
	switch s {
	case StrategyRoundRobin, "":
		return &roundRobin{}, nil
	case StrategyRandom:
		return randomSelector{}, nil
	case StrategyWeighted:
		return weightedSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown load-balancing strategy %q", s)
	}
}

// roundRobin keeps one counter per service name. With a stable candidate
// order, N consecutive picks visit each of N instances exactly once.
type roundRobin struct {
	counters sync.Map // name -> *atomic.Uint64
}

func (r *roundRobin) Select(name string, candidates []ServiceInstance) ServiceInstance {
	v, ok := r.counters.Load(name)
	if !ok {
		v, _ = r.counters.LoadOrStore(name, new(atomic.Uint64))
	}
	n := v.(*atomic.Uint64).Add(1) - 1
	return candidates[n%uint64(len(candidates))]
}

type randomSelector struct{}

func (randomSelector) Select(_ string, candidates []ServiceInstance) ServiceInstance {
	return candidates[rand.IntN(len(candidates))]
}

// weightedSelector picks with probability proportional to Weight; zero or
// negative weights count as 1.
type weightedSelector struct{}

func (weightedSelector) Select(_ string, candidates []ServiceInstance) ServiceInstance {
	total := 0
	for _, c := range candidates {
		total += c.weight()
	}
	n := rand.IntN(total)
	for _, c := range candidates {
		n -= c.weight()
		if n < 0 {
			return c
		}
	}
	return candidates[len(candidates)-1]
}
