// Package validator checks candidate sample payloads against their series'
// JSON Schema before they are allowed to exist.
package validator

import (
	"context"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lumohealth/vitalstore/internal/errors"
	"github.com/lumohealth/vitalstore/internal/metrics/registry"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// Validator validates sample values against registered series schemas.
type Validator struct {
	registry *registry.Registry
}

// New creates a validator consulting the given registry.
func New(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Validate checks one value against its series' schema and returns it
// unchanged on success - no coercion is performed, the payload shape is
// whatever the schema demands. Fails with ErrUnknownSeries for an
// unregistered series and ErrSchemaMismatch (with the validation detail)
// for a non-conforming value.
func (v *Validator) Validate(ctx context.Context, series string, value any) (any, error) {
	entry, err := v.registry.Lookup(ctx, series)
	if err != nil {
		return nil, err
	}

	if err := entry.Compiled.Validate(value); err != nil {
		return nil, errors.Wrapf(errors.ErrSchemaMismatch, "series %s: %s", series, validationDetail(err))
	}
	return value, nil
}

// validationDetail renders the innermost cause of a validation failure so
// the caller sees which keyword rejected the payload.
func validationDetail(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		return leaf.Error()
	}
	return err.Error()
}

// ValidateAll validates every sample of an ingest request before any row
// is persisted. The first failure aborts with a SampleError naming the
// offending sample's index; a request that fails here leaves no trace.
func (v *Validator) ValidateAll(ctx context.Context, data []types.IngestSample) error {
	for i, sample := range data {
		if _, err := v.Validate(ctx, sample.Series, sample.Value); err != nil {
			return errors.NewSampleError(i, sample.Series, err.Error(), err)
		}
	}
	return nil
}
