package composer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kidsdesign/storefront/internal/catalog"
)

type result[T any] struct {
	data T
	err  error
}

// call is one gateway request held until the test answers it.
type call[T any] struct {
	ctx   context.Context
	req   catalog.PageRequest
	reply chan result[T]
}

func (c call[T]) respond(data T, err error) {
	c.reply <- result[T]{data: data, err: err}
}

// fakeGateway records every fetch and blocks it until the test responds, so
// tests decide the order in which lanes settle.
type fakeGateway struct {
	categories chan call[catalog.Category]
	products   chan call[catalog.ProductPage]
	wishlists  chan call[[]catalog.WishEntry]
	done       chan struct{}
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		categories: make(chan call[catalog.Category], 32),
		products:   make(chan call[catalog.ProductPage], 32),
		wishlists:  make(chan call[[]catalog.WishEntry], 32),
		done:       make(chan struct{}),
	}
	t.Cleanup(func() { close(g.done) })
	return g
}

func roundTrip[T any](ctx context.Context, ch chan call[T], req catalog.PageRequest, done <-chan struct{}) (T, error) {
	c := call[T]{ctx: ctx, req: req, reply: make(chan result[T], 1)}
	ch <- c
	select {
	case r := <-c.reply:
		return r.data, r.err
	case <-done:
		var zero T
		return zero, context.Canceled
	}
}

func (g *fakeGateway) FetchCategory(ctx context.Context, categoryID int) (catalog.Category, error) {
	return roundTrip(ctx, g.categories, catalog.PageRequest{CategoryID: categoryID}, g.done)
}

func (g *fakeGateway) FetchProductPage(ctx context.Context, categoryID, page, _ int) (catalog.ProductPage, error) {
	return roundTrip(ctx, g.products, catalog.PageRequest{CategoryID: categoryID, Page: page}, g.done)
}

func (g *fakeGateway) FetchWishlist(ctx context.Context) ([]catalog.WishEntry, error) {
	return roundTrip(ctx, g.wishlists, catalog.PageRequest{}, g.done)
}

func next[T any](t *testing.T, ch chan call[T]) call[T] {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a gateway call")
		return call[T]{}
	}
}

func expectNoCall[T any](t *testing.T, ch chan call[T]) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected gateway call for %+v", c.req)
	case <-time.After(50 * time.Millisecond):
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
