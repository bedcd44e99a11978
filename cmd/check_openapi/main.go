package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type openAPIDoc struct {
	Paths      map[string]map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

// route is one method served by the journal router.
type route struct {
	Path   string
	Method string
}

var servedRoutes = []route{
	{"/healthz", "get"},
	{"/api/auth/signup", "post"},
	{"/api/auth/login", "post"},
	{"/api/auth/logout", "post"},
	{"/api/auth/logout-all", "post"},
	{"/api/users/me", "get"},
	{"/api/users/me", "patch"},
	{"/api/entries", "get"},
	{"/api/entries", "post"},
	{"/api/entries/{id}", "get"},
	{"/api/entries/{id}", "delete"},
	{"/api/streak", "get"},
	{"/api/dashboard", "get"},
	{"/api/prayers", "get"},
	{"/api/prayers", "post"},
	{"/api/prayers/{id}", "delete"},
	{"/api/prayers/{id}/answer", "post"},
	{"/api/community/share", "post"},
	{"/api/community/posts", "get"},
	{"/api/community/prayer-wall", "get"},
	{"/api/guidance", "post"},
	{"/api/transcribe", "post"},
	{"/api/verses/search", "get"},
	{"/api/scrolls", "get"},
}

// requiredFields lists the fields clients rely on for each response schema.
var requiredFields = map[string]map[string]string{
	"ErrorResponse":      {"error": "string"},
	"GuidanceResponse":   {"success": "boolean", "guidance": "", "timestamp": "string"},
	"TranscribeResponse": {"success": "boolean", "timestamp": "string"},
	"StreakSnapshot":     {"current": "integer", "longest": "integer", "lastEntry": "string", "weeklyEntries": "integer"},
	"CommunityPost":      {"id": "string", "userName": "string", "shareType": "string", "isAnonymous": "boolean"},
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if errs := check(doc); len(errs) > 0 {
		exitErr(errors.Join(errs...))
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// check reports routes missing from the document, documented operations the
// router does not serve, and response schemas missing client-facing fields.
func check(doc openAPIDoc) []error {
	var errs []error
	served := make(map[route]bool, len(servedRoutes))
	for _, r := range servedRoutes {
		served[r] = true
		if _, ok := doc.Paths[r.Path][r.Method]; !ok {
			errs = append(errs, fmt.Errorf("%s %s not documented", strings.ToUpper(r.Method), r.Path))
		}
	}
	for _, path := range sortedKeys(doc.Paths) {
		for _, method := range sortedKeys(doc.Paths[path]) {
			if method == "parameters" {
				continue
			}
			if !served[route{path, method}] {
				errs = append(errs, fmt.Errorf("%s %s documented but not served", strings.ToUpper(method), path))
			}
		}
	}
	for _, name := range sortedKeys(requiredFields) {
		s, err := getSchema(doc, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := validateRequired(name, s, requiredFields[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

// validateRequired checks that each field is required and, when a type is
// given, declared with that type.
func validateRequired(name string, s schema, fields map[string]string) error {
	if s.Type != "object" {
		return fmt.Errorf("%s must be object", name)
	}
	required := makeSet(s.Required)
	for _, field := range sortedKeys(fields) {
		if !required[field] {
			return fmt.Errorf("%s.required must include %q", name, field)
		}
		prop, ok := s.Properties[field]
		if !ok {
			return fmt.Errorf("%s.%s missing", name, field)
		}
		if want := fields[field]; want != "" && prop.Type != want {
			return fmt.Errorf("%s.%s must be %s, got %q", name, field, want, prop.Type)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
