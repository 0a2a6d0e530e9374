package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-topo/internal/api"
	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/mapview"
	"github.com/joeblew999/plat-topo/internal/server"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/store"
	"github.com/joeblew999/plat-topo/internal/tui"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// terminalVisitor keys the preferences of `topo browse`.
const terminalVisitor = "terminal"

func addCommands(cli humacli.CLI) {
	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.PrefsBackend = store.BackendMemory
			srv, err := newServer(opts, newLogger(opts))
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// export subcommand: catalog as GeoJSON in image pixel coordinates
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as a GeoJSON FeatureCollection",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, _ := loadCatalog(opts)
			data, err := json.MarshalIndent(cat.FeatureCollection(), "", "  ")
			if err != nil {
				fatal("Error marshaling catalog: %v", err)
			}
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				fmt.Println(string(data))
				return
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				fatal("Error writing %s: %v", out, err)
			}
			fmt.Printf("Wrote %d sheets to %s\n", cat.Len(), out)
		}),
	}
	exportCmd.Flags().StringP("output", "o", "", "Output file (stdout when empty)")
	cli.Root().AddCommand(exportCmd)

	// browse subcommand: terminal viewer
	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the sheets in the terminal",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			ctx := context.Background()
			cat, fc := loadCatalog(opts)
			st, err := store.Open(ctx, store.Options{
				Backend:  opts.PrefsBackend,
				Dir:      filepath.Join(opts.DataDir, "prefs"),
				RedisURL: opts.RedisURL,
			})
			if err != nil {
				fatal("Error opening preferences: %v", err)
			}
			defer st.Close()

			prefs := service.NewPrefsService(st, func(id string) bool {
				_, ok := cat.Get(id)
				return ok
			})
			view := mapview.New(cat, fc.ViewportConfig())
			p := tea.NewProgram(tui.New(ctx, view, prefs, terminalVisitor),
				tea.WithAltScreen(), tea.WithMouseAllMotion())
			if _, err := p.Run(); err != nil {
				fatal("Error: %v", err)
			}
		}),
	}
	cli.Root().AddCommand(browseCmd)

	// locate subcommand: the viewport a selection produces
	locateCmd := &cobra.Command{
		Use:   "locate <id>",
		Short: "Print the viewport state that selecting a sheet produces",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, fc := loadCatalog(opts)
			width, _ := cmd.Flags().GetFloat64("width")
			height, _ := cmd.Flags().GetFloat64("height")

			img := cat.Image()
			if !img.HasSize() {
				fatal("The catalog has no image size; set image.width and image.height in %s", opts.Config)
			}
			natural := viewport.Size{W: float64(img.Width), H: float64(img.Height)}
			body, err := api.Locate(cat, fc.ViewportConfig(), args[0], natural, viewport.Size{W: width, H: height})
			if err != nil {
				fatal("Error: %v", err)
			}
			out, _ := json.MarshalIndent(body, "", "  ")
			fmt.Println(string(out))
		}),
	}
	locateCmd.Flags().Float64("width", 1280, "Container width in pixels")
	locateCmd.Flags().Float64("height", 800, "Container height in pixels")
	cli.Root().AddCommand(locateCmd)
}

func loadCatalog(opts *Options) (*catalog.Catalog, server.FileConfig) {
	fc, err := server.LoadFileConfig(opts.Config)
	if err != nil {
		fatal("Error reading %s: %v", opts.Config, err)
	}
	cat, err := server.LoadCatalog(opts.Catalog)
	if err != nil {
		fatal("Error loading catalog: %v", err)
	}
	if cat, err = fc.ApplyImage(cat); err != nil {
		fatal("Error applying image settings: %v", err)
	}
	return cat, fc
}
