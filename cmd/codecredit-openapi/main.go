// Package main prints the OpenAPI document for the codecredit API.
// Routes are registered against handlers with no backing services, so no
// database or network access is needed.
//
// Usage:
//
//	go run ./cmd/codecredit-openapi > openapi.json
//	go run ./cmd/codecredit-openapi -yaml > openapi.yaml
//	go run ./cmd/codecredit-openapi -output openapi.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/codecredit-api/internal/http/routes"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/service"
	"github.com/jmylchreest/codecredit-api/internal/version"
)

func main() {
	outputFile := flag.String("output", "", "Output file path (default: stdout)")
	outputYAML := flag.Bool("yaml", false, "Output as YAML instead of JSON")
	baseURL := flag.String("base-url", "http://localhost:8080", "Base URL for the API server")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().Short())
		return
	}

	router := chi.NewRouter()
	api := humachi.New(router, routes.NewHumaConfig(*baseURL))

	// Handlers are never invoked; only their signatures shape the document.
	svcs := &service.Services{Catalog: plans.Default()}
	routes.Register(api, routes.NewHandlers(svcs, nil, slog.Default()))

	var (
		data []byte
		err  error
	)
	if *outputYAML {
		data, err = api.OpenAPI().YAML()
	} else {
		data, err = json.MarshalIndent(api.OpenAPI(), "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling OpenAPI spec: %v\n", err)
		os.Exit(1)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing to file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "OpenAPI spec written to %s\n", *outputFile)
	} else {
		fmt.Print(string(data))
	}
}
