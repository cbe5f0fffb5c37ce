package repository

import (
	"strings"
	"testing"
)

func TestQueryBuilder_AddWhere_TranslatesPlaceholders(t *testing.T) {
	qb := newQueryBuilder("SELECT * FROM products")
	qb.addWhere("kind = ?", "Feeder")
	qb.addWhere("available = ?", true)

	sql, args := qb.build()

	if !strings.Contains(sql, "$1") || !strings.Contains(sql, "$2") {
		t.Errorf("build() sql = %q, want $1 and $2 placeholders", sql)
	}
	if len(args) != 2 {
		t.Errorf("build() args = %v, want 2 entries", args)
	}
}

func TestQueryBuilder_AddWhereOr_GroupsValuesWithOr(t *testing.T) {
	qb := newQueryBuilder("SELECT * FROM products")
	qb.addWhereOr("LOWER(name) LIKE ?", []string{"mig", "tig"})

	sql, args := qb.build()

	if !strings.Contains(sql, " OR ") {
		t.Errorf("build() sql = %q, want an OR group", sql)
	}
	if len(args) != 2 {
		t.Errorf("build() args = %v, want 2 entries", args)
	}
}

func TestQueryBuilder_SetLimit_AppendsLimitClause(t *testing.T) {
	qb := newQueryBuilder("SELECT * FROM products")
	qb.setLimit(5)

	sql, args := qb.build()

	if !strings.Contains(sql, "LIMIT") {
		t.Error("build() should append a LIMIT clause")
	}
	if args[len(args)-1] != 5 {
		t.Errorf("last arg = %v, want 5", args[len(args)-1])
	}
}

func TestExpandMeasurementToken_PreventsSubstringCollision(t *testing.T) {
	tokens := expandMeasurementToken("5m")

	for _, tok := range tokens {
		if !strings.HasPrefix(tok, " ") {
			t.Errorf("token %q must be space-prefixed to avoid matching 15m as a substring of 5m", tok)
		}
	}
}

func TestExpandMeasurementToken_NonMeasurementPassesThrough(t *testing.T) {
	tokens := expandMeasurementToken("aluminum")
	if len(tokens) != 1 || tokens[0] != "aluminum" {
		t.Errorf("expandMeasurementToken(aluminum) = %v, want passthrough", tokens)
	}
}
