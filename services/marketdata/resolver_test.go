package marketdata

import (
	"context"
	"errors"
	"math"
	"testing"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"
	"newsdesk_backend/services/providers/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMockProvider(ctrl *gomock.Controller, id string) *mocks.MockQuoteProvider {
	p := mocks.NewMockQuoteProvider(ctrl)
	p.EXPECT().ID().Return(id).AnyTimes()
	return p
}

func TestResolveFallsThroughInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, b, c := newMockProvider(ctrl, "a"), newMockProvider(ctrl, "b"), newMockProvider(ctrl, "c")

	gomock.InOrder(
		a.EXPECT().FetchQuote(gomock.Any(), "SPX").Return(nil, errors.New("timeout")),
		b.EXPECT().FetchQuote(gomock.Any(), "SPX").Return(&providers.Quote{Value: 5123.4}, nil),
	)
	// c has no expectations: any call fails the test

	notifier := &countingNotifier{}
	r := NewResolver(providers.NewRegistry(a, b, c), staticOrder{models.CategoryIndex: {"a", "b", "c"}}, notifier)

	q, err := r.Resolve(context.Background(), models.CategoryIndex, "SPX", "")
	require.NoError(t, err)
	assert.Equal(t, "b", q.Source)
	assert.Equal(t, "SPX", q.Symbol)
	assert.Equal(t, 5123.4, q.Value)
	assert.Zero(t, notifier.Count())
}

func TestResolvePrefersLastSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, b, c := newMockProvider(ctrl, "a"), newMockProvider(ctrl, "b"), newMockProvider(ctrl, "c")

	gomock.InOrder(
		c.EXPECT().FetchQuote(gomock.Any(), "SPX").Return(nil, providers.ErrRateLimited),
		a.EXPECT().FetchQuote(gomock.Any(), "SPX").Return(&providers.Quote{Value: 10}, nil),
	)

	r := NewResolver(providers.NewRegistry(a, b, c), staticOrder{models.CategoryIndex: {"a", "b", "c"}}, nil)

	q, err := r.Resolve(context.Background(), models.CategoryIndex, "SPX", "c")
	require.NoError(t, err)
	assert.Equal(t, "a", q.Source)
}

func TestResolveExhaustionNotifiesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, b, c := newMockProvider(ctrl, "a"), newMockProvider(ctrl, "b"), newMockProvider(ctrl, "c")

	a.EXPECT().FetchQuote(gomock.Any(), "GOLD").Return(nil, providers.ErrNoData)
	b.EXPECT().FetchQuote(gomock.Any(), "GOLD").Return(nil, nil)
	c.EXPECT().FetchQuote(gomock.Any(), "GOLD").Return(&providers.Quote{Value: math.NaN()}, nil)

	notifier := &countingNotifier{}
	r := NewResolver(providers.NewRegistry(a, b, c), staticOrder{models.CategoryCommodity: {"a", "b", "c"}}, notifier)

	q, err := r.Resolve(context.Background(), models.CategoryCommodity, "GOLD", "")
	assert.Nil(t, q)
	assert.ErrorIs(t, err, ErrNoQuote)
	assert.Equal(t, 1, notifier.Count())
}

func TestResolveTradingViewNotifiesOnceAndContinues(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, b := newMockProvider(ctrl, "a"), newMockProvider(ctrl, "b")

	a.EXPECT().FetchQuote(gomock.Any(), "DAX").Return(nil, errors.New("boom"))
	b.EXPECT().FetchQuote(gomock.Any(), "DAX").Return(nil, errors.New("boom"))

	notifier := &countingNotifier{}
	order := staticOrder{models.CategoryIndex: {"a", providers.TradingViewID, "b", providers.TradingViewID}}
	r := NewResolver(providers.NewRegistry(a, b), order, notifier)

	_, err := r.Resolve(context.Background(), models.CategoryIndex, "DAX", "")
	assert.ErrorIs(t, err, ErrNoQuote)
	assert.Equal(t, 1, notifier.Count())
}

func TestResolveTradingViewDoesNotBlockLaterSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := newMockProvider(ctrl, "b")
	b.EXPECT().FetchQuote(gomock.Any(), "DAX").Return(&providers.Quote{Value: 18000}, nil)

	notifier := &countingNotifier{}
	order := staticOrder{models.CategoryIndex: {providers.TradingViewID, "b"}}
	r := NewResolver(providers.NewRegistry(b), order, notifier)

	q, err := r.Resolve(context.Background(), models.CategoryIndex, "DAX", "")
	require.NoError(t, err)
	assert.Equal(t, "b", q.Source)
	assert.Equal(t, 1, notifier.Count())
}

func TestResolveRecoversProviderPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, b := newMockProvider(ctrl, "a"), newMockProvider(ctrl, "b")

	a.EXPECT().FetchQuote(gomock.Any(), "SPX").DoAndReturn(func(context.Context, string) (*providers.Quote, error) {
		panic("nil map")
	})
	b.EXPECT().FetchQuote(gomock.Any(), "SPX").Return(&providers.Quote{Value: 1}, nil)

	r := NewResolver(providers.NewRegistry(a, b), staticOrder{models.CategoryIndex: {"a", "b"}}, nil)

	q, err := r.Resolve(context.Background(), models.CategoryIndex, "SPX", "")
	require.NoError(t, err)
	assert.Equal(t, "b", q.Source)
}

func TestResolveSkipsUnregisteredProviders(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := newMockProvider(ctrl, "b")
	b.EXPECT().FetchQuote(gomock.Any(), "SPX").Return(&providers.Quote{Value: 1}, nil)

	r := NewResolver(providers.NewRegistry(b), staticOrder{models.CategoryIndex: {"missing", "b"}}, nil)

	q, err := r.Resolve(context.Background(), models.CategoryIndex, "SPX", "")
	require.NoError(t, err)
	assert.Equal(t, "b", q.Source)
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newMockProvider(ctrl, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	notifier := &countingNotifier{}
	r := NewResolver(providers.NewRegistry(a), staticOrder{models.CategoryIndex: {"a"}}, notifier)

	_, err := r.Resolve(ctx, models.CategoryIndex, "SPX", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, notifier.Count())
}

func TestPromoteAffinity(t *testing.T) {
	order := []string{"a", "b", "c"}

	tests := []struct {
		name       string
		lastSource string
		want       []string
	}{
		{"no last source", "", []string{"a", "b", "c"}},
		{"already first", "a", []string{"a", "b", "c"}},
		{"moved to front", "c", []string{"c", "a", "b"}},
		{"middle", "b", []string{"b", "a", "c"}},
		{"not in order", "unknown", []string{"a", "b", "c"}},
		{"case insensitive", "C", []string{"c", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PromoteAffinity(order, tt.lastSource))
		})
	}
	assert.Equal(t, []string{"a", "b", "c"}, order, "input must not be modified")
}
