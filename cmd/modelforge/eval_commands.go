package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"modelforge/internal/config"
	"modelforge/internal/geometry"
	"modelforge/internal/params"
	"modelforge/internal/sandbox"
	"modelforge/internal/workflow"
)

type evalReport struct {
	File         string                      `json:"file"`
	SchemaSource string                      `json:"schemaSource"`
	Parameters   []params.Parameter          `json:"parameters"`
	Metadata     sandbox.Metadata            `json:"metadata"`
	Measurement  geometry.Measurement        `json:"measurement"`
	Printability geometry.PrintabilityReport `json:"printability"`
	Geometries   []geometry.Geometry         `json:"geometries,omitempty"`
}

func newEvalCommand(ctx *commandContext) *cobra.Command {
	var paramsJSON string
	var timeout time.Duration
	var withGeometry bool

	cmd := &cobra.Command{
		Use:   "eval <file>",
		Short: "Evaluate a model file in the sandbox and measure the result",
		Long: "Evaluate runs the file's main(params) in a fresh sandbox context. Parameters default " +
			"to the values declared in the file; --params overrides them with a JSON object.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			code, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			values, err := evalParameters(code, paramsJSON)
			if err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = cfg.SandboxTimeout()
			}

			host := sandbox.NewHost(sandbox.OptionsFromConfig(cfg, ctx.stderrLogger(cmd)), timeout)
			defer host.Close()

			outcome := host.Evaluate(cmd.Context(), code, values)
			if outcome.Error != nil {
				if outcome.Error.Stack != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), outcome.Error.Stack)
				}
				return outcome.Error
			}

			schema, source := workflow.Schema(code, outcome)
			measurement := geometry.Measure(outcome.Result.Geometries)
			report := evalReport{
				File:         args[0],
				SchemaSource: source,
				Parameters:   schema,
				Metadata:     outcome.Result.Metadata,
				Measurement:  measurement,
				Printability: geometry.AnalyzePrintability(outcome.Result.Geometries, measurement.BoundingBox),
			}
			if withGeometry {
				report.Geometries = outcome.Result.Geometries
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printEvalReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&paramsJSON, "params", "p", "", "Parameter values as a JSON object")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Evaluation timeout (default from config)")
	cmd.Flags().BoolVar(&withGeometry, "geometry", false, "Include polygons in --json output")
	return cmd
}

func newParamsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "params <file>",
		Short:       "List the parameters a model file declares without running it",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			schema := params.Extract(code)
			if ctx.jsonOutput() {
				return writeJSON(cmd, schema)
			}
			out := cmd.OutOrStdout()
			if len(schema) == 0 {
				fmt.Fprintln(out, "No parameters found")
				return nil
			}
			fmt.Fprint(out, renderParameters(out, schema))
			return nil
		},
	}
}

// readSource reads path, or stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", fmt.Errorf("read model: %w", err)
	}
	return string(data), nil
}

// evalParameters starts from the declared defaults and applies overrides.
func evalParameters(code, overrides string) (map[string]any, error) {
	values := params.Values(params.Extract(code))
	overrides = strings.TrimSpace(overrides)
	if overrides == "" {
		return values, nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(overrides), &extra); err != nil {
		return nil, fmt.Errorf("--params must be a JSON object: %w", err)
	}
	for k, v := range extra {
		values[k] = v
	}
	return values, nil
}

func renderParameters(out io.Writer, schema []params.Parameter) string {
	rows := make([][]string, 0, len(schema))
	for _, p := range schema {
		rng := ""
		if p.Min != nil || p.Max != nil {
			rng = fmt.Sprintf("%s..%s", optionalNumber(p.Min), optionalNumber(p.Max))
		}
		if len(p.Options) > 0 {
			rng = strings.Join(p.Options, " | ")
		}
		rows = append(rows, []string{p.Name, p.Label, p.Type, params.FormatValue(p.Value), rng})
	}
	return renderTable(out, []string{"Name", "Label", "Type", "Default", "Range"}, rows, nil)
}

func optionalNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return params.FormatValue(*v)
}

func printEvalReport(out io.Writer, r evalReport) {
	m := r.Measurement
	box := m.BoundingBox
	fmt.Fprint(out, renderPairs(out, [][2]string{
		{"Geometries", fmt.Sprintf("%d", r.Metadata.Count)},
		{"Polygons", fmt.Sprintf("%d", r.Metadata.Polygons)},
		{"Triangles", fmt.Sprintf("%d", m.TriangleCount)},
		{"Duration", (time.Duration(r.Metadata.DurationMs) * time.Millisecond).String()},
		{"Dimensions", formatVec(box.Dimensions)},
		{"Center", formatVec(box.Center)},
		{"Volume", fmt.Sprintf("%.3f", m.Volume)},
		{"Surface area", fmt.Sprintf("%.3f", m.SurfaceArea)},
		{"Printable", yesNo(r.Printability.Printable)},
	}))
	if len(r.Printability.Issues) > 0 {
		rows := make([][]string, 0, len(r.Printability.Issues))
		for _, issue := range r.Printability.Issues {
			rows = append(rows, []string{issue.Kind, fmt.Sprintf("%d", issue.GeometryIndex), issue.Message})
		}
		fmt.Fprint(out, renderTable(out, []string{"Issue", "Geometry", "Detail"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	}
	if len(r.Parameters) > 0 {
		fmt.Fprintf(out, "Parameters (%s schema)\n", r.SchemaSource)
		fmt.Fprint(out, renderParameters(out, r.Parameters))
	}
}

func formatVec(v geometry.Vec3) string {
	return fmt.Sprintf("%.2f x %.2f x %.2f", v.X(), v.Y(), v.Z())
}
