package adrive

import (
	"context"
	"strings"

	"golang.org/x/time/rate"
)

// limiterClass groups endpoints that share a server-side rate budget.
type limiterClass int

const (
	classList limiterClass = iota
	classLink
	classOther
)

func (l limiterClass) String() string {
	switch l {
	case classList:
		return "list"
	case classLink:
		return "link"
	default:
		return "other"
	}
}

// Server budgets are 4, 1 and 15 requests per second; stay just under them.
const (
	DefaultListRate  = 3.9
	DefaultLinkRate  = 0.9
	DefaultOtherRate = 14.9
)

// RateLimits sets the requests-per-second budget for each endpoint class.
// A non-positive value disables limiting for that class.
type RateLimits struct {
	List  float64
	Link  float64
	Other float64
}

// DefaultRateLimits returns the budgets published for the alipan API.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		List:  DefaultListRate,
		Link:  DefaultLinkRate,
		Other: DefaultOtherRate,
	}
}

type limiter struct {
	list  *rate.Limiter
	link  *rate.Limiter
	other *rate.Limiter
}

func newLimiter(rl RateLimits) *limiter {
	return &limiter{
		list:  newRateLimiter(rl.List),
		link:  newRateLimiter(rl.Link),
		other: newRateLimiter(rl.Other),
	}
}

func newRateLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// wait blocks until the class budget allows one more request.
func (l *limiter) wait(ctx context.Context, class limiterClass) error {
	if l == nil {
		return nil
	}

	var rl *rate.Limiter

	switch class {
	case classList:
		rl = l.list
	case classLink:
		rl = l.link
	default:
		rl = l.other
	}

	if rl == nil {
		return nil
	}

	return rl.Wait(ctx)
}

// classify picks the rate budget for an API path.
func classify(path string) limiterClass {
	switch {
	case strings.Contains(path, "download_url"):
		return classLink
	case strings.HasSuffix(path, "/list") || strings.Contains(path, "/list_by_"):
		return classList
	default:
		return classOther
	}
}
