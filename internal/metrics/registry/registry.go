// Package registry is the lookup and validation authority for metric
// series. It owns the set of registered series names, compiles each series'
// JSON Schema exactly once, and classifies schemas into shape classes.
//
// The registry keeps a read-mostly cache of compiled schemas in front of
// the store. Registration updates the cache synchronously; a lookup miss
// falls through to the store with singleflight deduplication, so within a
// single process there is no staleness window.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/singleflight"

	"github.com/lumohealth/vitalstore/internal/errors"
	"github.com/lumohealth/vitalstore/internal/logging"
	"github.com/lumohealth/vitalstore/internal/metrics/store"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// Entry is a registered series with its compiled schema and shape class.
type Entry struct {
	MetricType types.MetricType
	Compiled   *jsonschema.Schema
	Shape      types.ShapeClass
}

// Registry holds the known series and their schemas.
type Registry struct {
	store *store.Store
	log   *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Entry

	loads singleflight.Group
}

// New creates a registry backed by the given store.
func New(st *store.Store) *Registry {
	return &Registry{
		store: st,
		log:   logging.Component("registry"),
		cache: make(map[string]*Entry),
	}
}

// Register validates and persists a new metric type. The schema document
// must itself be a structurally valid draft-07 JSON Schema; this is checked
// here, once, and never again at query time. Fails with ErrSchemaInvalid on
// a malformed schema and ErrDuplicateSeries on a name conflict.
func (r *Registry) Register(ctx context.Context, series, schema, description string) (*types.MetricType, error) {
	if series == "" {
		return nil, errors.NewInvalidParameter("series", series)
	}

	compiled, err := compileSchema(series, schema)
	if err != nil {
		return nil, err
	}

	mt := &types.MetricType{
		Series:      series,
		Schema:      schema,
		Description: description,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := r.store.InsertMetricType(ctx, mt); err != nil {
		return nil, err
	}

	shape, err := classifyRaw(schema)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[series] = &Entry{MetricType: *mt, Compiled: compiled, Shape: shape}
	r.mu.Unlock()

	r.log.Info("series registered", "series", series, "shape", shape)
	return mt, nil
}

// Lookup returns the entry for a series, loading it from the store on a
// cache miss. Concurrent misses for the same series share one load.
// Fails with ErrUnknownSeries if the series is not registered.
func (r *Registry) Lookup(ctx context.Context, series string) (*Entry, error) {
	r.mu.RLock()
	entry, ok := r.cache[series]
	r.mu.RUnlock()
	if ok {
		return entry, nil
	}

	v, err, _ := r.loads.Do(series, func() (any, error) {
		mt, err := r.store.GetMetricType(ctx, series)
		if err != nil {
			return nil, err
		}
		compiled, err := compileSchema(mt.Series, mt.Schema)
		if err != nil {
			return nil, err
		}
		shape, err := classifyRaw(mt.Schema)
		if err != nil {
			return nil, err
		}
		entry := &Entry{MetricType: *mt, Compiled: compiled, Shape: shape}

		r.mu.Lock()
		r.cache[series] = entry
		r.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// List enumerates all registered metric types.
func (r *Registry) List(ctx context.Context) ([]types.MetricType, error) {
	return r.store.ListMetricTypes(ctx)
}

// Shapes resolves the shape class for each of the given series names.
func (r *Registry) Shapes(ctx context.Context, series []string) (map[string]types.ShapeClass, error) {
	shapes := make(map[string]types.ShapeClass, len(series))
	for _, name := range series {
		entry, err := r.Lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		shapes[name] = entry.Shape
	}
	return shapes, nil
}

// compileSchema compiles a schema document under draft-07 semantics.
func compileSchema(series, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	url := fmt.Sprintf("vitalstore:///%s.schema.json", series)
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, errors.Wrapf(errors.ErrSchemaInvalid, "series %s: %v", series, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSchemaInvalid, "series %s: %v", series, err)
	}
	return compiled, nil
}

// ClassifyShape classifies a decoded schema document into its shape class.
// It is a pure function of the document: repeated calls always agree.
//
// Numeric takes precedence: a schema that somehow satisfies both the
// numeric and the rgb criteria is numeric. (The two checks are only ever
// made in this one place, in this one order.)
func ClassifyShape(doc map[string]any) types.ShapeClass {
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		return types.ShapeOpaque
	}

	if value, ok := props["value"].(map[string]any); ok {
		if t, ok := value["type"].(string); ok && t == "number" {
			return types.ShapeNumeric
		}
	}

	if hasKeys(props, "r", "g", "b") {
		return types.ShapeRGB
	}

	return types.ShapeOpaque
}

func hasKeys(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func classifyRaw(schema string) (types.ShapeClass, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(schema), &doc); err != nil {
		return 0, errors.Wrapf(errors.ErrSchemaInvalid, "decode schema: %v", err)
	}
	return ClassifyShape(doc), nil
}
