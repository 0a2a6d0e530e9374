package humastar

import (
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// LinkSet holds generated RFC 8288 link headers keyed by operation path.
type LinkSet map[string][]string

// SkipTag marks operations (the Datastar viewer endpoints) that take no part
// in link generation.
const SkipTag = "viewer"

// formatTypes maps path extensions to the media type of that representation.
// A path like /api/v1/sheets.geojson is an alternate of /api/v1/sheets.
var formatTypes = map[string]string{
	".geojson": "application/geo+json",
	".json":    "application/json",
	".csv":     "text/csv",
}

// Relation declares a link between two resources that path structure alone
// does not reveal, such as a sheet and the viewport that locates it. Path
// parameters shared by From and To are filled in per request.
type Relation struct {
	From string
	To   string
	Rel  string
	Type string
}

// AutoLinks walks the OpenAPI spec and returns the generated hypermedia links.
func AutoLinks(api huma.API, rels ...Relation) LinkSet {
	ls := LinkSet{}
	ls.Build(api, rels...)
	return ls
}

// Build replaces the set's contents with links generated from the OpenAPI
// spec plus the declared relations. Call after all routes are registered; a
// transformer created from the set earlier sees the result.
func (ls LinkSet) Build(api huma.API, rels ...Relation) {
	oapi := api.OpenAPI()
	clear(ls)
	addLink := ls.add

	// Collect collection paths (no {param}) and item paths (have {param}),
	// skipping Datastar SSE endpoints.
	type pathInfo struct {
		path string
		tags []string
	}
	var collections, items []pathInfo
	variants := map[string]string{}

	for p, pi := range oapi.Paths {
		tags := primaryTags(pi)
		if hasTag(tags, SkipTag) {
			continue
		}
		info := pathInfo{path: p, tags: tags}
		if ext := path.Ext(p); formatTypes[ext] != "" {
			if _, ok := oapi.Paths[strings.TrimSuffix(p, ext)]; ok {
				variants[p] = ext
				continue
			}
		}
		if strings.Contains(p, "{") {
			items = append(items, info)
		} else {
			collections = append(collections, info)
		}
	}

	// 1. Item → collection (rel="collection") + up (rel="up")
	for _, item := range items {
		parent := path.Dir(item.path)
		if _, ok := oapi.Paths[parent]; ok {
			addLink(item.path, parent, "collection")
			addLink(item.path, parent, "up")
		}
	}

	// 2. Collection → item template (rel="item")
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item.path) == coll.path {
				addLink(coll.path, item.path, "item")
			}
		}
	}

	// 2b. Collection → entry point (rel="up")
	for _, coll := range collections {
		if coll.path == "/health" {
			continue
		}
		addLink(coll.path, "/health", "up")
	}

	// 2c. Collection → search (rel="search") via query endpoint
	if _, ok := oapi.Paths["/api/v1/query"]; ok {
		for _, coll := range collections {
			addLink(coll.path, "/api/v1/query", "search")
		}
	}

	// 3. Action rels from HTTP methods (IANA standard)
	for _, coll := range collections {
		pi := oapi.Paths[coll.path]
		if pi.Post != nil {
			addLink(coll.path, coll.path, "create-form")
		}
	}
	for _, item := range items {
		pi := oapi.Paths[item.path]
		if pi.Put != nil || pi.Patch != nil {
			addLink(item.path, item.path, "edit")
			addLink(item.path, item.path, "edit-form")
		}
	}

	// 4. Cross-link collections sharing a tag
	for i, a := range collections {
		for j, b := range collections {
			if i == j {
				continue
			}
			if sharedTag(a.tags, b.tags) != "" {
				rel := lastSegment(b.path)
				addLink(a.path, b.path, rel)
			}
		}
	}

	// 4b. Format variants and their base resource are alternates
	for p, ext := range variants {
		base := strings.TrimSuffix(p, ext)
		ls.addTyped(base, p, "alternate", formatTypes[ext])
		ls.addTyped(p, base, "alternate", "application/json")
		addLink(p, "/health", "up")
	}

	// 4c. Declared relations between resources
	for _, r := range rels {
		_, from := oapi.Paths[r.From]
		_, to := oapi.Paths[r.To]
		if from && to {
			ls.addTyped(r.From, r.To, r.Rel, r.Type)
		}
	}

	// 5. Entry points: /health gets links to all collections + IANA discovery rels
	entryPaths := []string{"/health"}
	for _, ep := range entryPaths {
		for _, coll := range collections {
			if coll.path == ep {
				continue
			}
			rel := lastSegment(coll.path)
			addLink(ep, coll.path, rel)
		}
		addLink(ep, "/openapi.json", "describedby")
		addLink(ep, "/openapi.json", "service-desc")
		addLink(ep, "/docs", "service-doc")

		// search rel: link to POST-based query endpoint (IANA "search")
		if _, ok := oapi.Paths["/api/v1/query"]; ok {
			addLink(ep, "/api/v1/query", "search")
		}
	}

	// 6. describedby per-resource: link to JSON Schema fragment in OpenAPI spec
	for _, all := range [][]pathInfo{collections, items} {
		for _, pi := range all {
			schemaRef := getResponseSchemaRef(oapi.Paths[pi.path])
			if schemaRef != "" {
				addLink(pi.path, "/openapi.json#/components/schemas/"+schemaRef, "describedby")
			}
		}
	}

	// 7. Inject OpenAPI Response.Links on operations
	for p, pi := range oapi.Paths {
		headers, ok := ls[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op == nil {
				continue
			}
			injectResponseLinks(op, headers)
		}
	}
}

// Transformer returns a Huma Transformer that injects the generated
// RFC 8288 Link headers at runtime.
func (ls LinkSet) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range ls[op.Path] {
			ctx.AppendHeader("Link", expandParams(link, ctx))
		}

		// Item endpoints get a self link with the resolved URL.
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		// Pagination links from response body.
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		// State-dependent action links from response body.
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

// Root returns the Link headers of the /health entry point, for use by
// non-Huma handlers serving the root.
func (ls LinkSet) Root() []string {
	return ls["/health"]
}

// --- helpers ---

func (ls LinkSet) add(from, to, rel string) {
	ls.addTyped(from, to, rel, "")
}

func (ls LinkSet) addTyped(from, to, rel, typ string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	if typ != "" {
		val += fmt.Sprintf(`; type="%s"`, typ)
	}
	if slices.Contains(ls[from], val) {
		return
	}
	ls[from] = append(ls[from], val)
}

// expandParams fills {name} placeholders in a link target with the request's
// path parameters. Placeholders the operation does not bind stay templated.
func expandParams(link string, ctx huma.Context) string {
	end := strings.IndexByte(link, '>')
	if end < 0 || !strings.Contains(link[:end], "{") {
		return link
	}
	target := link[:end]
	var b strings.Builder
	for {
		open := strings.IndexByte(target, '{')
		if open < 0 {
			break
		}
		closing := strings.IndexByte(target[open:], '}')
		if closing < 0 {
			break
		}
		name := target[open+1 : open+closing]
		b.WriteString(target[:open])
		if v := ctx.Param(name); v != "" {
			b.WriteString(url.PathEscape(v))
		} else {
			b.WriteString(target[open : open+closing+1])
		}
		target = target[open+closing+1:]
	}
	b.WriteString(target)
	return b.String() + link[end:]
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasTag(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}

func sharedTag(a, b []string) string {
	for _, at := range a {
		for _, bt := range b {
			if at == bt {
				return at
			}
		}
	}
	return ""
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success response
// so the OpenAPI document itself records the relationships.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	// Find the success response (2xx).
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func getResponseSchemaRef(pi *huma.PathItem) string {
	if pi.Get == nil || pi.Get.Responses == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp.Content == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				// Extract schema name from $ref like "#/components/schemas/Foo"
				parts := strings.Split(mt.Schema.Ref, "/")
				return parts[len(parts)-1]
			}
		}
	}
	return ""
}

func parseLinkHeader(h string) (rel, href string) {
	// Parse `<url>; rel="name"; type="..."` format.
	parts := strings.Split(h, ";")
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	for _, param := range parts[1:] {
		if v, ok := strings.CutPrefix(strings.TrimSpace(param), "rel="); ok {
			rel = strings.Trim(v, `"`)
		}
	}
	return rel, href
}
