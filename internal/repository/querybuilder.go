package repository

import (
	"fmt"
	"strings"
)

// queryBuilder assembles a parameterized SQL query against the products
// table, translating `?` placeholders to Postgres `$N` the way the
// teacher's history query builder does.
type queryBuilder struct {
	baseQuery    string
	whereClauses []string
	args         []interface{}
	argCounter   int
	limit        int
}

func newQueryBuilder(baseQuery string) *queryBuilder {
	return &queryBuilder{baseQuery: baseQuery}
}

// addWhere appends a clause, replacing each `?` with the next `$N`.
func (qb *queryBuilder) addWhere(clause string, args ...interface{}) {
	numArgs := strings.Count(clause, "?")
	for i := 0; i < numArgs; i++ {
		qb.argCounter++
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", qb.argCounter), 1)
	}
	qb.whereClauses = append(qb.whereClauses, clause)
	qb.args = append(qb.args, args...)
}

// addWhereOr appends a disjunction of `clauseTemplate` instantiated once
// per value, the group wrapped in parens and AND-ed with other clauses —
// used for "OR per attribute value, AND across attributes" (spec §4.3).
func (qb *queryBuilder) addWhereOr(clauseTemplate string, values []string) {
	if len(values) == 0 {
		return
	}
	var parts []string
	for _, v := range values {
		qb.argCounter++
		parts = append(parts, strings.Replace(clauseTemplate, "?", fmt.Sprintf("$%d", qb.argCounter), 1))
		qb.args = append(qb.args, v)
	}
	qb.whereClauses = append(qb.whereClauses, "("+strings.Join(parts, " OR ")+")")
}

func (qb *queryBuilder) setLimit(n int) {
	if n > 0 {
		qb.limit = n
	}
}

func (qb *queryBuilder) build() (string, []interface{}) {
	parts := []string{qb.baseQuery}
	if len(qb.whereClauses) > 0 {
		parts = append(parts, "WHERE "+strings.Join(qb.whereClauses, " AND "))
	}
	parts = append(parts, "ORDER BY score DESC, name ASC")
	if qb.limit > 0 {
		qb.argCounter++
		parts = append(parts, fmt.Sprintf("LIMIT $%d", qb.argCounter))
		qb.args = append(qb.args, qb.limit)
	}
	return strings.Join(parts, " "), qb.args
}
