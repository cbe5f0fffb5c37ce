package repository

import (
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/weldcfg/configurator/internal/core"
)

// scanProducts reads every row into a core.Product, decoding the JSONB
// attributes column into the flat string map the domain model expects.
func scanProducts(rows pgx.Rows) ([]core.Product, error) {
	var products []core.Product
	for rows.Next() {
		var (
			gin, name, description, kind, accessorySubkind string
			attributesJSON                                 []byte
			available                                      bool
		)
		if err := rows.Scan(&gin, &name, &description, &kind, &accessorySubkind, &attributesJSON, &available); err != nil {
			return nil, err
		}

		attrs := make(map[string]string)
		if len(attributesJSON) > 0 {
			if err := json.Unmarshal(attributesJSON, &attrs); err != nil {
				return nil, err
			}
		}

		products = append(products, core.Product{
			GIN:              gin,
			Name:             name,
			Description:      description,
			Kind:             core.ComponentKind(kind),
			AccessorySubkind: core.AccessorySubkind(accessorySubkind),
			Attributes:       attrs,
			Available:        available,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
