package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"mt5-bridge/internal/tools"
)

// OpenAPIVersion is the OpenAPI revision of the generated document.
const OpenAPIVersion = "3.1.0"

var pathParam = regexp.MustCompile(`\{([^}]+)\}`)

// OpenAPI builds the API description from the route table and the tool
// input schemas.
func (s *Server) OpenAPI() (map[string]interface{}, error) {
	paths := make(map[string]map[string]interface{})
	for _, route := range Routes {
		t, err := s.registry.Get(route.Tool)
		if err != nil {
			return nil, err
		}
		schema, err := tools.ParseSchema(t)
		if err != nil {
			return nil, fmt.Errorf("schema of %s: %w", route.Tool, err)
		}

		path := s.opts.Prefix + route.Pattern
		if paths[path] == nil {
			paths[path] = make(map[string]interface{})
		}
		paths[path][strings.ToLower(route.Method)] = operation(route, t, schema)
	}

	return map[string]interface{}{
		"openapi": OpenAPIVersion,
		"info": map[string]interface{}{
			"title":   s.opts.Title,
			"version": s.opts.Version,
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"error": map[string]string{"type": "string"}},
				},
			},
		},
	}, nil
}

func operation(route Route, t tools.Tool, schema tools.Schema) map[string]interface{} {
	inPath := make(map[string]bool)
	for _, m := range pathParam.FindAllStringSubmatch(route.Pattern, -1) {
		inPath[m[1]] = true
	}
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var parameters []map[string]interface{}
	bodyProps := make(map[string]tools.Property)
	var bodyRequired []string
	withBody := route.Method == http.MethodPost || route.Method == http.MethodPut

	for _, name := range names {
		prop := schema.Properties[name]
		switch {
		case inPath[name]:
			parameters = append(parameters, parameter(name, "path", prop, true))
		case withBody:
			bodyProps[name] = prop
			if required[name] {
				bodyRequired = append(bodyRequired, name)
			}
		default:
			parameters = append(parameters, parameter(name, "query", prop, required[name]))
		}
	}

	op := map[string]interface{}{
		"operationId": route.Tool,
		"summary":     route.Summary,
		"description": t.Description(),
		"tags":        []string{route.Tag},
		"responses": map[string]interface{}{
			"200": map[string]interface{}{"description": "Successful response"},
			"400": errorResponse("Invalid input"),
			"404": errorResponse("Not found"),
			"503": errorResponse("Terminal unavailable"),
		},
	}
	if len(parameters) > 0 {
		op["parameters"] = parameters
	}
	if withBody && len(bodyProps) > 0 {
		body := map[string]interface{}{"type": "object", "properties": bodyProps}
		if len(bodyRequired) > 0 {
			body["required"] = bodyRequired
		}
		op["requestBody"] = map[string]interface{}{
			"required": len(bodyRequired) > 0,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{"schema": body},
			},
		}
	}
	return op
}

func parameter(name, in string, prop tools.Property, required bool) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          in,
		"required":    required,
		"description": prop.Description,
		"schema":      prop,
	}
}

func errorResponse(desc string) map[string]interface{} {
	return map[string]interface{}{
		"description": desc,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
}
