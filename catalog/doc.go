// Package catalog defines the movie catalog contract the recommendation pipeline
// depends on, together with its data model and transport errors. Concrete
// providers live in subpackages: tmdb (HTTP), breaker (circuit-breaker decorator)
// and inmemory (deterministic fixtures).
package catalog
