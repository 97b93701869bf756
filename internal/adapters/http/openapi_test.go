package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// findOpenAPISpec locates the openapi.yaml file by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	// Start from the current working directory or test file location
	dir, _ := os.Getwd()

	// Look for api/openapi.yaml by going up directories
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

// TestOpenAPIDocument validates the OpenAPI document is valid.
func TestOpenAPIDocument(t *testing.T) {
	// Load the document
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	// Parse YAML document
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	// Validate the doc
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI document validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/pool",
		"/v1/sessions",
		"/v1/sessions/{id}",
		"/v1/sessions/{id}/resume",
		"/v1/sessions/{id}/jump",
		"/v1/sessions/{id}/ease",
		"/v1/sessions/{id}/fly",
		"/v1/sessions/{id}/fit",
		"/v1/sessions/{id}/pan",
		"/v1/sessions/{id}/zoom",
		"/v1/sessions/{id}/rotate",
		"/v1/sessions/{id}/stop",
		"/v1/sessions/{id}/resize",
		"/v1/sessions/{id}/bounds",
		"/v1/sessions/{id}/views",
		"/v1/sessions/{id}/views/{viewId}",
		"/v1/sessions/{id}/tours",
		"/v1/sessions/{id}/tiles",
		"/v1/views",
		"/v1/views/{id}",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in the document", path)
		}
	}

	expectedSchemas := []string{
		"LngLat",
		"LngLatBounds",
		"CameraState",
		"CameraEvent",
		"AnimationOptions",
		"FlyRequest",
		"FitRequest",
		"SavedView",
		"TourRequest",
		"APIError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	for _, schema := range []string{"SessionOptions", "CameraState"} {
		props := doc.Components.Schemas[schema].Value.Properties
		for _, field := range []string{"render_world_copies", "max_bounds"} {
			if props[field] == nil {
				t.Errorf("expected %s.%s in the document", schema, field)
			}
		}
	}

	if op := doc.Paths.Find("/v1/sessions/{id}/flyto").Post; op == nil || !op.Deprecated {
		t.Error("expected flyto to be marked deprecated")
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(doc.Paths.Map()), len(doc.Components.Schemas))
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	if doc.Info.Title != "MapCam API" {
		t.Errorf("expected title 'MapCam API', got %q", doc.Info.Title)
	}

	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}

	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(doc.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", doc.Info.Title, doc.Info.Version, doc.Servers[0].URL)
}
