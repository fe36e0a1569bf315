package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-trip/internal/server"
	"github.com/joeblew999/plat-trip/internal/track"
)

// Options defines all CLI flags and env vars for the trip server.
// Flags: --host, --port, --data-dir, --web-dir, --snap-zoom
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_SNAP_ZOOM
type Options struct {
	Host     string  `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int     `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir  string  `doc:"Directory for trip data files" default:".data"`
	WebDir   string  `doc:"Path to web/ directory" default:"web"`
	SnapZoom float64 `doc:"Map zoom level for snap distances" default:"13"`
}

func newServer(opts *Options) *server.Server {
	return server.New(server.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		DataDir:  opts.DataDir,
		WebDir:   opts.WebDir,
		SnapZoom: opts.SnapZoom,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-trip API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Pages:   %s/planner\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "trip"
	cli.Root().Short = "Trip planner for drawing routes and scheduling checkpoints"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// import subcommand: import GPX files into the track registry
	importCmd := &cobra.Command{
		Use:   "import <file.gpx> [more.gpx...]",
		Short: "Import GPX reference tracks into the data directory",
		Args:  cobra.MinimumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			registry := track.NewRegistry(opts.DataDir)
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
					os.Exit(1)
				}
				trk, err := registry.Import(filepath.Base(path), data)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", path, err)
					os.Exit(1)
				}
				fmt.Printf("Imported %s (%d points, %d waypoints)\n", trk.ID, len(trk.Points), len(trk.Waypoints))
			}
		}),
	}
	cli.Root().AddCommand(importCmd)

	cli.Run()
}
