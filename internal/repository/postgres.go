// Package repository implements the Product Repository (C3): wraps
// graph queries behind three operations — direct lookup, parameter
// filtered search, and compatibility-only fallback search (spec §4.3).
//
// The reference graph port is backed by Postgres: a `products` table
// (one row per catalogue entity, attributes in a JSONB column) and a
// `compatibility_edge` table recording the undirected COMPATIBLE_WITH
// relation, both created by the goose migrations in
// internal/infrastructure/migrations.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/weldcfg/configurator/internal/compatibility"
	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/database/postgres"
)

const (
	lookupCap = 5
	searchCap = 5
)

// Options configures the cache in front of graph queries.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// PostgresRepository implements core.Repository against the Postgres
// product graph.
type PostgresRepository struct {
	db    postgres.DatabaseConnection
	cache *resultCache
	log   *slog.Logger
}

// NewPostgresRepository builds a repository over an already-connected
// database pool.
func NewPostgresRepository(db postgres.DatabaseConnection, opts Options, log *slog.Logger) *PostgresRepository {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRepository{
		db:    db,
		cache: newResultCache(opts.CacheSize, opts.CacheTTL),
		log:   log,
	}
}

var _ core.Repository = (*PostgresRepository)(nil)

// LookupByName implements core.Repository (spec §4.3 op 1). It fuzzy
// normalizes rawName with a case-insensitive substring match against the
// product name, ties broken alphabetically, capped at 5.
func (r *PostgresRepository) LookupByName(ctx context.Context, kind core.ComponentKind, rawName string) ([]core.Product, error) {
	normalized := normalizeNameToken(rawName)

	qb := newQueryBuilder(selectProductsSQL)
	qb.addWhere("kind = ?", string(kind))
	qb.addWhere("available = true")
	qb.addWhere("LOWER(name) LIKE ?", "%"+normalized+"%")
	qb.setLimit(lookupCap)

	sql, args := qb.build()
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapTransportErr("LookupByName", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, wrapTransportErr("LookupByName", err)
	}
	return products, nil
}

// Search implements core.Repository (spec §4.3 op 2). Eligible only when
// the caller has already verified |bag| >= 1 or a direct mention exists;
// this method does not re-check eligibility. Per spec §4.3 "Fallback
// rule" / §8 invariant 11, iff the filtered query comes back empty and
// the bag was non-empty, Search internally reruns as FindAllCompatible
// (dropping the attribute filters, keeping the compatibility predicate)
// and returns that tagged result instead.
func (r *PostgresRepository) Search(ctx context.Context, kind core.ComponentKind, bag core.ParameterBag, predicate core.CompatibilityPredicate) (core.SearchResult, error) {
	key := cacheKey("search", kind, predicate, bag)
	if cached, ok := r.cache.get(key); ok {
		return cached, nil
	}

	qb := newQueryBuilder(selectProductsSQL)
	qb.addWhere("kind = ?", string(kind))
	qb.addWhere("available = true")
	addAnchorClauses(qb, predicate)
	addAttributeClauses(qb, bag)
	qb.setLimit(searchCap)

	sql, args := qb.build()
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return core.SearchResult{}, wrapTransportErr("Search", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return core.SearchResult{}, wrapTransportErr("Search", err)
	}

	if len(products) == 0 && !bag.IsEmpty() {
		result, err := r.FindAllCompatible(ctx, kind, predicate)
		if err != nil {
			return core.SearchResult{}, err
		}
		r.cache.put(key, result)
		return result, nil
	}

	result := core.SearchResult{Products: products}
	r.cache.put(key, result)
	return result, nil
}

// FindAllCompatible implements core.Repository (spec §4.3 op 3): the
// fallback pass that drops attribute filters but preserves the
// compatibility predicate.
func (r *PostgresRepository) FindAllCompatible(ctx context.Context, kind core.ComponentKind, predicate core.CompatibilityPredicate) (core.SearchResult, error) {
	key := cacheKey("find_all_compatible", kind, predicate, core.ParameterBag{})
	if cached, ok := r.cache.get(key); ok {
		return cached, nil
	}

	qb := newQueryBuilder(selectProductsSQL)
	qb.addWhere("kind = ?", string(kind))
	qb.addWhere("available = true")
	addAnchorClauses(qb, predicate)
	qb.setLimit(searchCap)

	sql, args := qb.build()
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return core.SearchResult{}, wrapTransportErr("FindAllCompatible", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return core.SearchResult{}, wrapTransportErr("FindAllCompatible", err)
	}

	result := core.SearchResult{Products: products, Fallback: true}
	r.cache.put(key, result)
	return result, nil
}

const selectProductsSQL = `SELECT gin, name, description, kind, accessory_subkind, attributes, available FROM products`

// addAnchorClauses adds one EXISTS clause per anchor GIN requiring a row
// in compatibility_edge joining the candidate to that anchor, implementing
// spec §4.4: "the edge COMPATIBLE_WITH(x, a) exists in the graph" for
// every anchor a.
func addAnchorClauses(qb *queryBuilder, predicate core.CompatibilityPredicate) {
	gins := anchorGINs(predicate)
	for _, gin := range gins {
		qb.addWhere(
			"EXISTS (SELECT 1 FROM compatibility_edge ce WHERE (ce.product_a = products.gin AND ce.product_b = ?) OR (ce.product_b = products.gin AND ce.product_a = ?))",
			gin, gin,
		)
	}
}

func anchorGINs(predicate core.CompatibilityPredicate) []string {
	if p, ok := predicate.(compatibility.Predicate); ok {
		return p.AnchorGINs
	}
	return nil
}

// addAttributeClauses implements spec §4.3 matching semantics: case
// insensitive substring over description + name + embedding text,
// OR'd per attribute value, AND'd across attributes. Measurement tokens
// are expanded to a word-boundary set before matching.
func addAttributeClauses(qb *queryBuilder, bag core.ParameterBag) {
	for name, value := range bag.Attributes {
		tokens := expandMeasurementToken(value)
		var clauseValues []string
		for _, t := range tokens {
			clauseValues = append(clauseValues, strings.ToLower(t))
		}
		qb.addWhereOr(
			fmt.Sprintf("LOWER(description || ' ' || name || ' ' || embedding_text) LIKE '%%' || ? || '%%'"),
			clauseValues,
		)
	}
}

// expandMeasurementToken expands tokens like "5m" to a word-boundary set
// {" 5m", " 5.0m"} so "5.0m" matches "15.0m" is prevented by the leading
// space (spec §4.3).
func expandMeasurementToken(value string) []string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < 2 {
		return []string{value}
	}
	last := trimmed[len(trimmed)-1]
	if last != 'm' && last != 'M' {
		return []string{value}
	}
	num := trimmed[:len(trimmed)-1]
	if strings.Contains(num, ".") {
		return []string{" " + trimmed}
	}
	return []string{" " + trimmed, " " + num + ".0m"}
}

// normalizeNameToken lower-cases and trims a raw product-mention token
// before the LookupByName fuzzy match.
func normalizeNameToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
