package ratelimit

import (
	"context"
	"strings"
	"unicode"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

// Limiter admits or delays an outgoing request. Acquire blocks until
// the given cost is granted, the context is done, or the cost can
// never be granted. Implementations must be safe for concurrent use.
//
// Cost is 1 for request-count dimensions; size-weighted dimensions
// receive a token estimate (see EstimateTokens).
type Limiter interface {
	Acquire(ctx context.Context, cost float64) error
}

// nop is the pass-through limiter used when no quota is configured.
type nop struct{}

func (nop) Acquire(context.Context, float64) error { return nil }

// Nop returns a limiter that admits everything immediately.
func Nop() Limiter { return nop{} }

// fixedCost charges a constant cost on every acquire.
type fixedCost struct {
	inner Limiter
	cost  float64
}

func (f fixedCost) Acquire(ctx context.Context, _ float64) error {
	return f.inner.Acquire(ctx, f.cost)
}

// FixedCost wraps a limiter so every acquire charges the same cost,
// whatever the caller passes. A request-count bucket runs behind the
// size-weighted Limiter interface this way.
func FixedCost(l Limiter, cost float64) Limiter {
	return fixedCost{inner: l, cost: cost}
}

// waitErr maps a limiter wait failure to the taxonomy. Oversized costs
// are rejected before any wait, so every failure reaching here is
// deadline shaped: either the context expired mid-wait, or the wait
// could never fit inside the deadline — rate.Limiter.Wait reports the
// latter immediately, before ctx.Err() is even set.
func waitErr(err error) error {
	return api.NewTimeoutError("rate limiter wait: " + err.Error())
}

// cjkTokenWeight is the per-rune weight for CJK text in the token
// estimate; Latin text is weighted per whitespace-delimited word.
const cjkTokenWeight = 0.625

// EstimateTokens approximates how many model tokens a piece of text
// will consume, for tokens-per-minute limiting. CJK characters count
// at 0.625 each and whitespace-delimited words at 1 each.
func EstimateTokens(text string) float64 {
	var cjk int
	var rest strings.Builder
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			rest.WriteRune(r)
		}
	}
	words := len(strings.Fields(rest.String()))
	return float64(cjk)*cjkTokenWeight + float64(words)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
