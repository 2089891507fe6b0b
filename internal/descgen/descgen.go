// Package descgen assembles a per-tenant, machine-readable API document
// from the live set of connected, admitted workers' tool schemas. It is
// encoding-agnostic — the HTTP surface picks encoding/json or
// gopkg.in/yaml.v3 to serialize the same document value.
package descgen

import (
	"fmt"

	"github.com/toolbridge/dispatcher/internal/schema"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
)

const blurb = "Auto-generated API description of the tools currently reachable through this tenant's dispatcher bridge."

// Document is the fixed top-level shape every generated description has.
type Document struct {
	OpenAPI    string         `json:"openapi" yaml:"openapi"`
	Info       Info           `json:"info" yaml:"info"`
	Servers    []Server       `json:"servers" yaml:"servers"`
	Paths      map[string]any `json:"paths" yaml:"paths"`
	Components Components     `json:"components" yaml:"components"`
	Security   []map[string][]string `json:"security" yaml:"security"`
}

type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
}

type Server struct {
	URL string `json:"url" yaml:"url"`
}

type Components struct {
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes" yaml:"securitySchemes"`
	Schemas         map[string]any            `json:"schemas" yaml:"schemas"`
}

type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"`
	Scheme       string `json:"scheme" yaml:"scheme"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
}

// errorSchema is the shared Error schema every non-2xx response references.
var errorSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"error": map[string]any{"type": "string"},
		"code":  map[string]any{"type": "string"},
	},
	"required": []any{"error", "code"},
}

// Generator builds Documents from live registry snapshots. It holds no
// mutable state of its own — every call recomputes from scratch, which is
// cheap enough given the expected worker-pool size and keeps the cache
// invalidation story trivial: there is no cache to invalidate.
type Generator struct {
	publicURL string
}

// New builds a Generator that advertises publicURL in the servers block.
func New(publicURL string) *Generator {
	return &Generator{publicURL: publicURL}
}

// Generate produces t's description document from snap, the Worker
// Registry's current point-in-time view.
func (g *Generator) Generate(t *tenant.Tenant, snap worker.Snapshot) Document {
	paths := make(map[string]any)
	seen := make(map[string]struct{})

	for _, rec := range snap.Connected() {
		if _, admitted := t.AllowedClientTokens[rec.WorkerToken]; !admitted {
			continue
		}
		for _, tool := range rec.Tools {
			if _, dup := seen[tool.Name]; dup {
				continue
			}
			seen[tool.Name] = struct{}{}
			paths["/api/tools/"+tool.Name] = toolPathItem(tool)
		}
	}

	return Document{
		OpenAPI: "3.0.3",
		Info: Info{
			Title:       fmt.Sprintf("Toolbridge Dispatcher - %s", t.Name),
			Version:     "1.0.0",
			Description: truncate300(t.Description) + " " + blurb,
		},
		Servers: []Server{{URL: g.publicURL}},
		Paths:   paths,
		Components: Components{
			SecuritySchemes: map[string]SecurityScheme{
				"bearerAuth": {Type: "http", Scheme: "bearer"},
			},
			Schemas: map[string]any{"Error": errorSchema},
		},
		Security: []map[string][]string{{"bearerAuth": {}}},
	}
}

// toolPathItem builds the `/api/tools/{name}` path item for one tool.
func toolPathItem(tool worker.ToolSchema) map[string]any {
	returns := sanitizeSchema(tool.Returns)
	if returns == nil {
		returns = map[string]any{"type": "object"}
	}

	return map[string]any{
		"post": map[string]any{
			"operationId": tool.Name,
			"description": truncate300(tool.Description),
			"x-dispatcher-non-state-changing": true,
			"requestBody": map[string]any{
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": sanitizeOrEmptyObject(tool.Params),
					},
				},
			},
			"responses": map[string]any{
				"200": map[string]any{
					"description": "tool result",
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"result": returns,
								},
							},
						},
					},
				},
				"400": errorResponse("invalid payload"),
				"404": errorResponse("tool not found"),
				"500": errorResponse("tool execution error"),
			},
		},
	}
}

func errorResponse(desc string) map[string]any {
	return map[string]any{
		"description": desc,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/Error"},
			},
		},
	}
}

func sanitizeOrEmptyObject(s schema.Schema) map[string]any {
	if sanitized := sanitizeSchema(s); sanitized != nil {
		return sanitized
	}
	return map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{}}
}
