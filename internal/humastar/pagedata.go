// pagedata.go: Reverse mapping: OpenAPI document → page template data.
//
// BuildPageData extracts everything a page template needs from the OpenAPI document:
//   - Signals JSON (data-signals init from x-signal properties + UI state)
//   - Routes (operation ID → path, for every operation carrying the page's tag)
//
// Templates therefore never hardcode URLs or signal names.
package humastar

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// PageData holds everything a page template needs from the OpenAPI spec.
// Templates use {{.Signals}} for data-signals init and
// {{.Route "viewer-select" .ID}} for action URLs.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// Routes maps operation IDs to their paths.
	// e.g. Routes["viewer-state"] = "/api/v1/viewer/state"
	Routes map[string]string
}

// Route returns the path of an operation with its {param} placeholders
// replaced, in order, by params. Unknown operations yield "#".
func (pd PageData) Route(operationID string, params ...string) string {
	p, ok := pd.Routes[operationID]
	if !ok {
		return "#"
	}
	for _, v := range params {
		open := strings.IndexByte(p, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(p[open:], '}')
		if end < 0 {
			break
		}
		p = p[:open] + v + p[open+end+1:]
	}
	return p
}

// DataInit returns a Datastar data-init attribute value fetching the given
// operations. e.g. "@get('/api/v1/viewer/state')"
func (pd PageData) DataInit(operationIDs ...string) string {
	var parts []string
	for _, id := range operationIDs {
		if p, ok := pd.Routes[id]; ok {
			parts = append(parts, fmt.Sprintf("@get('%s')", p))
		}
	}
	return strings.Join(parts, "; ")
}

// BuildPageData builds template data for the operations tagged with tag.
// Signals come from the x-signal properties of value's schema (the field
// values of value, falling back to schema defaults for zero values) merged
// with uiSignals.
func BuildPageData(api huma.API, tag string, value any, uiSignals map[string]any) PageData {
	signals := SignalValues(api, value)
	for k, v := range uiSignals {
		signals[k] = v
	}
	signalsJSON, _ := json.Marshal(signals)

	return PageData{
		Signals: string(signalsJSON),
		Routes:  discoverRoutes(api, tag),
	}
}

// SignalValues maps the fields of value that carry an x-signal extension to
// their signal names. value must be a struct registered as a schema.
func SignalValues(api huma.API, value any) map[string]any {
	signals := map[string]any{}
	if value == nil {
		return signals
	}
	rv := reflect.Indirect(reflect.ValueOf(value))
	t := rv.Type()
	if t.Kind() != reflect.Struct {
		return signals
	}
	schema, ok := api.OpenAPI().Components.Schemas.Map()[t.Name()]
	if !ok {
		return signals
	}

	for i := range t.NumField() {
		prop, ok := schema.Properties[jsonName(t.Field(i))]
		if !ok {
			continue
		}
		sig, ok := prop.Extensions[SignalExtension].(string)
		if !ok {
			continue
		}
		fv := rv.Field(i)
		switch {
		case !fv.IsZero() || fv.Kind() == reflect.Bool:
			signals[sig] = fv.Interface()
		case prop.Default != nil:
			signals[sig] = prop.Default
		default:
			signals[sig] = fv.Interface()
		}
	}
	return signals
}

// discoverRoutes maps the operation IDs of every operation tagged with tag
// to its path.
func discoverRoutes(api huma.API, tag string) map[string]string {
	routes := map[string]string{}
	for path, item := range api.OpenAPI().Paths {
		for _, op := range operationsOf(item) {
			if op == nil || op.OperationID == "" || !hasTag(op.Tags, tag) {
				continue
			}
			routes[op.OperationID] = path
		}
	}
	return routes
}
