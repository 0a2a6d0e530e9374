// extensions.go: Injects x-signal extensions into OpenAPI schemas.
//
// At server startup, InjectSignals walks registered schemas and copies each
// field's `signal:"name"` struct tag onto the matching property as x-signal,
// so the OpenAPI spec names the Datastar signal a property is bound to and
// page data can be built from the OpenAPI document instead of re-walking struct tags.
package humastar

import (
	"reflect"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// SignalExtension is the property extension carrying the signal name.
const SignalExtension = "x-signal"

// InjectSignals adds x-signal extensions for the given Go types. Call after
// all routes are registered so their schemas exist; unregistered types are
// skipped.
func InjectSignals(api huma.API, types ...reflect.Type) {
	schemas := api.OpenAPI().Components.Schemas.Map()

	for _, t := range types {
		schema, ok := schemas[t.Name()]
		if !ok {
			continue
		}
		for i := range t.NumField() {
			sf := t.Field(i)
			sig := sf.Tag.Get("signal")
			if sig == "" {
				continue
			}
			prop, ok := schema.Properties[jsonName(sf)]
			if !ok {
				continue
			}
			if prop.Extensions == nil {
				prop.Extensions = map[string]any{}
			}
			prop.Extensions[SignalExtension] = sig
		}
	}
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" {
		return sf.Name
	}
	return name
}
