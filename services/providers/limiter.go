package providers

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// WithRateLimit gates every call to p so that at most perMinute requests leave the process.
// A non-positive perMinute disables limiting.
func WithRateLimit(p QuoteProvider, perMinute int) QuoteProvider {
	if perMinute <= 0 {
		return p
	}
	lp := &limitedProvider{
		p:       p,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
	if bp, ok := p.(BatchQuoteProvider); ok {
		return &limitedBatchProvider{limitedProvider: lp, batch: bp}
	}
	return lp
}

type limitedProvider struct {
	p       QuoteProvider
	limiter *rate.Limiter
}

func (l *limitedProvider) ID() string { return l.p.ID() }

func (l *limitedProvider) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.p.FetchQuote(ctx, symbol)
}

type limitedBatchProvider struct {
	*limitedProvider
	batch BatchQuoteProvider
}

func (l *limitedBatchProvider) FetchQuotes(ctx context.Context, ids []string) (map[string]*Quote, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.batch.FetchQuotes(ctx, ids)
}
