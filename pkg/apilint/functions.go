package apilint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daveshanley/vacuum/model"
	"go.yaml.in/yaml/v4"
)

// customFunctions maps function names referenced by the ruleset to their
// implementations.
func customFunctions() map[string]model.RuleFunction {
	return map[string]model.RuleFunction{
		"quarryOperationID":      &fnOperationID{},
		"quarryOperationTags":    &fnOperationTags{},
		"quarrySchemaRef":        &fnSchemaRef{},
		"quarryErrorResponses":   &fnErrorResponses{},
		"quarryPaginationParams": &fnPaginationParams{},
		"quarryPaginatedSchema":  &fnPaginatedSchema{},
		"quarrySecured401":       &fnSecured401{},
		"quarryAdmin403":         &fnAdmin403{},
		"quarryDelete204":        &fnDelete204{},
		"quarryPost201":          &fnPost201{},
	}
}

// === YAML node helpers ===

func yGet(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func yOpID(op *yaml.Node) string {
	if n := yGet(op, "operationId"); n != nil {
		return n.Value
	}
	return ""
}

// opLabel names an operation for messages: operationId when present,
// "method path" otherwise.
func opLabel(path, method string, op *yaml.Node) string {
	if id := yOpID(op); id != "" {
		return id
	}
	return method + " " + path
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

type opVisitor = func(path, method string, op *yaml.Node)

func forEachOp(root *yaml.Node, fn opVisitor) {
	paths := yGet(root, "paths")
	if paths == nil {
		return
	}
	for i := 0; i < len(paths.Content)-1; i += 2 {
		pathKey := paths.Content[i].Value
		pathItem := paths.Content[i+1]
		for j := 0; j < len(pathItem.Content)-1; j += 2 {
			method := pathItem.Content[j].Value
			if httpMethods[method] {
				fn(pathKey, method, pathItem.Content[j+1])
			}
		}
	}
}

func rootNode(nodes []*yaml.Node) *yaml.Node {
	if len(nodes) == 0 {
		return nil
	}
	n := nodes[0]
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

func makeResult(msg, path, ruleID string, node *yaml.Node, ctx model.RuleFunctionContext) model.RuleFunctionResult {
	return model.RuleFunctionResult{
		Message:   msg,
		Path:      path,
		RuleId:    ruleID,
		StartNode: node,
		EndNode:   node,
		Rule:      ctx.Rule,
	}
}

// =====================================================================
// quarry-operation-id — operationId present and unique
// =====================================================================

type fnOperationID struct{}

func (f *fnOperationID) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryOperationID"}
}
func (f *fnOperationID) GetCategory() string { return model.CategoryOperations }

func (f *fnOperationID) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	seen := map[string]int{} // operationId → first line
	forEachOp(root, func(path, method string, op *yaml.Node) {
		idNode := yGet(op, "operationId")
		if idNode == nil {
			results = append(results, makeResult(
				fmt.Sprintf("operation %s %s is missing operationId", method, path),
				fmt.Sprintf("$.paths.%s.%s", path, method),
				"quarry-operation-id", op, ctx))
			return
		}
		if first, dup := seen[idNode.Value]; dup {
			results = append(results, makeResult(
				fmt.Sprintf("duplicate operationId %q (first declared at line %d)", idNode.Value, first),
				fmt.Sprintf("$.paths.%s.%s.operationId", path, method),
				"quarry-operation-id", idNode, ctx))
			return
		}
		seen[idNode.Value] = idNode.Line
	})
	return results
}

// =====================================================================
// quarry-operation-tags — every operation is tagged
// =====================================================================

type fnOperationTags struct{}

func (f *fnOperationTags) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryOperationTags"}
}
func (f *fnOperationTags) GetCategory() string { return model.CategoryOperations }

func (f *fnOperationTags) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		tags := yGet(op, "tags")
		if tags == nil || len(tags.Content) == 0 {
			results = append(results, makeResult(
				fmt.Sprintf("operation %q has no tags", opLabel(path, method, op)),
				fmt.Sprintf("$.paths.%s.%s", path, method),
				"quarry-operation-tags", op, ctx))
		}
	})
	return results
}

// =====================================================================
// quarry-schema-ref — bodies reference component schemas
// =====================================================================

type fnSchemaRef struct{}

func (f *fnSchemaRef) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarrySchemaRef"}
}
func (f *fnSchemaRef) GetCategory() string { return model.CategoryOperations }

func (f *fnSchemaRef) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		label := opLabel(path, method, op)
		if responses := yGet(op, "responses"); responses != nil {
			for i := 0; i < len(responses.Content)-1; i += 2 {
				status := responses.Content[i].Value
				if n := findInlineSchema(responses.Content[i+1]); n != nil {
					results = append(results, makeResult(
						fmt.Sprintf("operation %q response %s declares an inline schema instead of a $ref", label, status),
						fmt.Sprintf("$.paths.%s.%s.responses.%s", path, method, status),
						"quarry-schema-ref", n, ctx))
				}
			}
		}
		if body := yGet(op, "requestBody"); body != nil {
			if n := findInlineSchema(body); n != nil {
				results = append(results, makeResult(
					fmt.Sprintf("operation %q requestBody declares an inline schema instead of a $ref", label),
					fmt.Sprintf("$.paths.%s.%s.requestBody", path, method),
					"quarry-schema-ref", n, ctx))
			}
		}
	})
	return results
}

// findInlineSchema returns the schema node when a request/response object
// carries an application/json schema without a $ref.
func findInlineSchema(obj *yaml.Node) *yaml.Node {
	content := yGet(obj, "content")
	appJSON := yGet(content, "application/json")
	schema := yGet(appJSON, "schema")
	if schema == nil {
		return nil
	}
	if yGet(schema, "$ref") == nil {
		return schema
	}
	return nil
}

// =====================================================================
// quarry-error-responses — 4xx/5xx use the Error envelope
// =====================================================================

type fnErrorResponses struct{}

func (f *fnErrorResponses) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryErrorResponses"}
}
func (f *fnErrorResponses) GetCategory() string { return model.CategoryOperations }

func (f *fnErrorResponses) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		responses := yGet(op, "responses")
		if responses == nil {
			return
		}
		for i := 0; i < len(responses.Content)-1; i += 2 {
			status := responses.Content[i].Value
			code, err := strconv.Atoi(status)
			if err != nil || code < 400 {
				continue
			}
			resp := responses.Content[i+1]
			if resolvesToErrorSchema(root, resp) {
				continue
			}
			results = append(results, makeResult(
				fmt.Sprintf("operation %q response %s does not use the Error schema", opLabel(path, method, op), status),
				fmt.Sprintf("$.paths.%s.%s.responses.%s", path, method, status),
				"quarry-error-responses", resp, ctx))
		}
	})
	return results
}

// resolvesToErrorSchema follows one level of #/components/responses
// indirection; the ruleset runs unresolved so component refs stay visible.
func resolvesToErrorSchema(root, resp *yaml.Node) bool {
	if ref := yGet(resp, "$ref"); ref != nil {
		const prefix = "#/components/responses/"
		if !strings.HasPrefix(ref.Value, prefix) {
			return false
		}
		component := yGet(yGet(yGet(root, "components"), "responses"), strings.TrimPrefix(ref.Value, prefix))
		if component == nil {
			return false
		}
		resp = component
	}
	schema := yGet(yGet(yGet(resp, "content"), "application/json"), "schema")
	schemaRef := yGet(schema, "$ref")
	return schemaRef != nil && strings.HasSuffix(schemaRef.Value, "/Error")
}

// =====================================================================
// quarry-pagination-params — Paginated* list ops take the paging params
// =====================================================================

type fnPaginationParams struct{}

func (f *fnPaginationParams) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryPaginationParams"}
}
func (f *fnPaginationParams) GetCategory() string { return model.CategoryOperations }

func (f *fnPaginationParams) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		if method != "get" {
			return
		}
		ref := responseSchemaRef(op, "200")
		if ref == "" || !strings.HasPrefix(refName(ref), "Paginated") {
			return
		}
		hasMax, hasToken := paginationParams(root, path, op)
		if hasMax && hasToken {
			return
		}
		var missing []string
		if !hasMax {
			missing = append(missing, "max_results")
		}
		if !hasToken {
			missing = append(missing, "page_token")
		}
		results = append(results, makeResult(
			fmt.Sprintf("paginated operation %q is missing the %s parameter(s)", opLabel(path, method, op), strings.Join(missing, ", ")),
			fmt.Sprintf("$.paths.%s.get", path),
			"quarry-pagination-params", op, ctx))
	})
	return results
}

func responseSchemaRef(op *yaml.Node, status string) string {
	resp := yGet(yGet(op, "responses"), status)
	schema := yGet(yGet(yGet(resp, "content"), "application/json"), "schema")
	if ref := yGet(schema, "$ref"); ref != nil {
		return ref.Value
	}
	return ""
}

func refName(ref string) string {
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}

// paginationParams scans operation-level and path-level parameters for the
// paging pair, by name or by component ref.
func paginationParams(root *yaml.Node, path string, op *yaml.Node) (hasMax, hasToken bool) {
	scan := func(params *yaml.Node) {
		if params == nil {
			return
		}
		for _, p := range params.Content {
			if p.Kind != yaml.MappingNode {
				continue
			}
			if name := yGet(p, "name"); name != nil {
				switch name.Value {
				case "max_results":
					hasMax = true
				case "page_token":
					hasToken = true
				}
			}
			if ref := yGet(p, "$ref"); ref != nil {
				switch refName(ref.Value) {
				case "MaxResults":
					hasMax = true
				case "PageToken":
					hasToken = true
				}
			}
		}
	}
	scan(yGet(op, "parameters"))
	scan(yGet(yGet(yGet(root, "paths"), path), "parameters"))
	return
}

// =====================================================================
// quarry-paginated-schema — Paginated* schemas carry data + next_page_token
// =====================================================================

type fnPaginatedSchema struct{}

func (f *fnPaginatedSchema) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryPaginatedSchema"}
}
func (f *fnPaginatedSchema) GetCategory() string { return model.CategorySchemas }

func (f *fnPaginatedSchema) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	schemas := yGet(yGet(root, "components"), "schemas")
	if schemas == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	for i := 0; i < len(schemas.Content)-1; i += 2 {
		name := schemas.Content[i].Value
		if !strings.HasPrefix(name, "Paginated") {
			continue
		}
		schema := schemas.Content[i+1]
		props := yGet(schema, "properties")
		var missing []string
		if yGet(props, "data") == nil {
			missing = append(missing, "data")
		}
		if yGet(props, "next_page_token") == nil {
			missing = append(missing, "next_page_token")
		}
		if len(missing) > 0 {
			results = append(results, makeResult(
				fmt.Sprintf("schema %q is missing: %s", name, strings.Join(missing, ", ")),
				fmt.Sprintf("$.components.schemas.%s", name),
				"quarry-paginated-schema", schema, ctx))
		}
	}
	return results
}

// =====================================================================
// quarry-secured-401 — secured operations document 401
// =====================================================================

type fnSecured401 struct{}

func (f *fnSecured401) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarrySecured401"}
}
func (f *fnSecured401) GetCategory() string { return model.CategorySecurity }

func (f *fnSecured401) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	globalSec := yGet(root, "security")
	if globalSec == nil || len(globalSec.Content) == 0 {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		// An explicit empty security list opts the operation out.
		if sec := yGet(op, "security"); sec != nil && len(sec.Content) == 0 {
			return
		}
		if yGet(yGet(op, "responses"), "401") == nil {
			results = append(results, makeResult(
				fmt.Sprintf("secured operation %q does not document a 401 response", opLabel(path, method, op)),
				fmt.Sprintf("$.paths.%s.%s.responses", path, method),
				"quarry-secured-401", op, ctx))
		}
	})
	return results
}

// =====================================================================
// quarry-admin-403 — admin-only operations document 403
// =====================================================================

type fnAdmin403 struct{}

func (f *fnAdmin403) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryAdmin403"}
}
func (f *fnAdmin403) GetCategory() string { return model.CategorySecurity }

func (f *fnAdmin403) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		desc := yGet(op, "description")
		if desc == nil || !strings.Contains(desc.Value, "Admin only") {
			return
		}
		if yGet(yGet(op, "responses"), "403") == nil {
			results = append(results, makeResult(
				fmt.Sprintf("admin-only operation %q does not document a 403 response", opLabel(path, method, op)),
				fmt.Sprintf("$.paths.%s.%s.responses", path, method),
				"quarry-admin-403", op, ctx))
		}
	})
	return results
}

// =====================================================================
// quarry-delete-204 — DELETE answers 204
// =====================================================================

type fnDelete204 struct{}

func (f *fnDelete204) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryDelete204"}
}
func (f *fnDelete204) GetCategory() string { return model.CategoryOperations }

func (f *fnDelete204) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		if method != "delete" {
			return
		}
		if yGet(yGet(op, "responses"), "204") == nil {
			results = append(results, makeResult(
				fmt.Sprintf("operation %q should answer 204 on success", opLabel(path, method, op)),
				fmt.Sprintf("$.paths.%s.delete.responses", path),
				"quarry-delete-204", op, ctx))
		}
	})
	return results
}

// =====================================================================
// quarry-post-201 — creating POSTs answer 201
// =====================================================================

// actionSegments are path tails that make a POST an action rather than a
// resource creation, so a 200 is the right answer.
var actionSegments = map[string]bool{
	"query": true, "explain": true, "refresh": true,
	"expand": true, "manifest": true, "apply": true,
}

type fnPost201 struct{}

func (f *fnPost201) GetSchema() model.RuleFunctionSchema {
	return model.RuleFunctionSchema{Name: "quarryPost201"}
}
func (f *fnPost201) GetCategory() string { return model.CategoryOperations }

func (f *fnPost201) RunRule(nodes []*yaml.Node, ctx model.RuleFunctionContext) []model.RuleFunctionResult {
	root := rootNode(nodes)
	if root == nil {
		return nil
	}
	var results []model.RuleFunctionResult
	forEachOp(root, func(path, method string, op *yaml.Node) {
		if method != "post" {
			return
		}
		segments := strings.Split(strings.Trim(path, "/"), "/")
		last := segments[len(segments)-1]
		if actionSegments[last] || strings.HasPrefix(last, "{") {
			return
		}
		if yGet(yGet(op, "responses"), "201") == nil {
			results = append(results, makeResult(
				fmt.Sprintf("creating operation %q should answer 201", opLabel(path, method, op)),
				fmt.Sprintf("$.paths.%s.post.responses", path),
				"quarry-post-201", op, ctx))
		}
	})
	return results
}
