package repository

import "github.com/weldcfg/configurator/internal/core"

// wrapTransportErr converts a raw driver error into a core.RepositoryError
// tagged with the failing operation, the only error shape the Orchestrator
// is allowed to see coming out of this package (spec §4.3 "Fails with
// RepositoryError on transport errors").
func wrapTransportErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &core.RepositoryError{Operation: operation, Err: err}
}
