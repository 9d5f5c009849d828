package valuation

import (
	"context"

	"github.com/rs/zerolog"
)

// Resolver is one candidate source for a signal. Resolve reports ok=false
// when the source has nothing usable: missing input, an implausible value
// and a failed lookup all look the same to the chain.
type Resolver[T any] struct {
	Name    string
	Resolve func(ctx context.Context) (T, bool)
}

// resolverFunc builds a Resolver.
func resolverFunc[T any](name string, fn func(ctx context.Context) (T, bool)) Resolver[T] {
	return Resolver[T]{Name: name, Resolve: fn}
}

// Chain evaluates resolvers in order and returns the first accepted value
// with the name of the resolver that produced it.
func Chain[T any](ctx context.Context, log zerolog.Logger, signal string, resolvers ...Resolver[T]) (T, string, bool) {
	for _, r := range resolvers {
		if ctx.Err() != nil {
			break
		}
		v, ok := r.Resolve(ctx)
		if ok {
			log.Debug().Str("signal", signal).Str("source", r.Name).Msg("resolved")
			return v, r.Name, true
		}
		log.Debug().Str("signal", signal).Str("source", r.Name).Msg("unavailable, trying next")
	}
	var zero T
	return zero, "", false
}

// ChainOr is Chain with a terminal default.
func ChainOr[T any](ctx context.Context, log zerolog.Logger, signal string, fallback T, resolvers ...Resolver[T]) (T, string) {
	if v, src, ok := Chain(ctx, log, signal, resolvers...); ok {
		return v, src
	}
	log.Debug().Str("signal", signal).Msg("using fallback")
	return fallback, "fallback"
}

// accept wraps a float resolver with a plausibility band.
func accept(b Band, fn func(ctx context.Context) (float64, bool)) func(ctx context.Context) (float64, bool) {
	return func(ctx context.Context) (float64, bool) {
		v, ok := fn(ctx)
		if !ok || !b.Contains(v) {
			return 0, false
		}
		return v, true
	}
}
