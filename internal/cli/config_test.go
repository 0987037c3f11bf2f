package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattfenn/erfgen/pkg/engine"
	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeConfig(t, `
points = "buildings.geojson"
roads = "roads.geojson"
output = "out.geojson"

[pipeline]
mode = "blocks"
target_frame = "EPSG:32736"
road_buffer_distance = 12.5
min_area = 100.0
max_area = 5000.0
orthogonalize = true
angle_tolerance = 20.0
cap_style = "round"
`)

	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig() error: %v", err)
	}

	if cfg.Points != "buildings.geojson" {
		t.Errorf("Points = %q", cfg.Points)
	}
	if cfg.Roads != "roads.geojson" {
		t.Errorf("Roads = %q", cfg.Roads)
	}
	if cfg.Output != "out.geojson" {
		t.Errorf("Output = %q", cfg.Output)
	}
	if cfg.Pipeline.Mode != "blocks" {
		t.Errorf("Mode = %q", cfg.Pipeline.Mode)
	}
	if cfg.Pipeline.TargetFrame != "EPSG:32736" {
		t.Errorf("TargetFrame = %q", cfg.Pipeline.TargetFrame)
	}
	if cfg.Pipeline.RoadBufferDistance != 12.5 {
		t.Errorf("RoadBufferDistance = %g", cfg.Pipeline.RoadBufferDistance)
	}
	if !cfg.Pipeline.Orthogonalize {
		t.Error("Orthogonalize should be true")
	}
	if cfg.Pipeline.CapStyle != "round" {
		t.Errorf("CapStyle = %q", cfg.Pipeline.CapStyle)
	}
}

func TestLoadRunConfigMissingFile(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidConfig {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}
}

func TestLoadRunConfigMalformed(t *testing.T) {
	path := writeConfig(t, "points = [not toml")
	_, err := LoadRunConfig(path)
	if err == nil {
		t.Fatal("expected error for malformed config")
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidConfig {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}
}

func TestPipelineConfigApply(t *testing.T) {
	cfg := PipelineConfig{
		Mode:               "blocks",
		TargetFrame:        "EPSG:32736",
		RoadBufferDistance: 15,
		MinArea:            100,
		Orthogonalize:      true,
		CapStyle:           "square",
		SkipBlockClip:      true,
	}

	opts := pipeline.Options{
		RoadBufferDistance: pipeline.DefaultRoadBufferDistance,
		MinArea:            pipeline.DefaultMinArea,
		MaxArea:            pipeline.DefaultMaxArea,
	}
	cfg.Apply(&opts)

	if opts.Mode != pipeline.ModeBlocks {
		t.Errorf("Mode = %q", opts.Mode)
	}
	if opts.TargetFrame != "EPSG:32736" {
		t.Errorf("TargetFrame = %q", opts.TargetFrame)
	}
	if opts.RoadBufferDistance != 15 {
		t.Errorf("RoadBufferDistance = %g", opts.RoadBufferDistance)
	}
	if opts.MinArea != 100 {
		t.Errorf("MinArea = %g", opts.MinArea)
	}
	// Unset in the file, so the flag default survives.
	if opts.MaxArea != pipeline.DefaultMaxArea {
		t.Errorf("MaxArea = %g, want default %g", opts.MaxArea, pipeline.DefaultMaxArea)
	}
	if !opts.Orthogonalize {
		t.Error("Orthogonalize should be true")
	}
	if opts.CapStyle != engine.CapSquare {
		t.Errorf("CapStyle = %q", opts.CapStyle)
	}
	if !opts.SkipBlockClip {
		t.Error("SkipBlockClip should be true")
	}
}

func TestPipelineConfigApplyEmpty(t *testing.T) {
	opts := pipeline.Options{
		RoadBufferDistance: pipeline.DefaultRoadBufferDistance,
		MinArea:            pipeline.DefaultMinArea,
		MaxArea:            pipeline.DefaultMaxArea,
		TargetFrame:        "EPSG:3857",
	}
	PipelineConfig{}.Apply(&opts)

	if opts.RoadBufferDistance != pipeline.DefaultRoadBufferDistance {
		t.Errorf("RoadBufferDistance = %g", opts.RoadBufferDistance)
	}
	if opts.TargetFrame != "EPSG:3857" {
		t.Errorf("TargetFrame = %q", opts.TargetFrame)
	}
}

func TestFlagOverridesConfig(t *testing.T) {
	c := New(os.Stderr, LogInfo)
	cmd := c.generateCommand()

	if err := cmd.Flags().Set("buffer", "25"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	cfg := RunConfig{
		Points: "cfg-points.geojson",
		Pipeline: PipelineConfig{
			RoadBufferDistance: 5,
			MinArea:            100,
		},
	}

	opts := pipeline.Options{
		RoadBufferDistance: 25, // flag value already bound
		MinArea:            pipeline.DefaultMinArea,
	}
	var points, roads, output string
	applyConfig(cmd, cfg, &opts, &points, &roads, &output)

	// The changed flag wins; the untouched option takes the file's value.
	if opts.RoadBufferDistance != 25 {
		t.Errorf("RoadBufferDistance = %g, want flag value 25", opts.RoadBufferDistance)
	}
	if opts.MinArea != 100 {
		t.Errorf("MinArea = %g, want config value 100", opts.MinArea)
	}
	if points != "cfg-points.geojson" {
		t.Errorf("points = %q, want config path", points)
	}
}

func TestLoadInputRequiresPoints(t *testing.T) {
	_, err := loadInput("", "", pipeline.Options{Mode: pipeline.ModeCadastral})
	if err == nil {
		t.Fatal("expected error for cadastral mode without points")
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidConfig {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}
}

func TestLoadInputBlocksModeNoPoints(t *testing.T) {
	input, err := loadInput("", "", pipeline.Options{Mode: pipeline.ModeBlocks})
	if err != nil {
		t.Fatalf("loadInput() error: %v", err)
	}
	if len(input.Buildings.Points) != 0 {
		t.Error("expected empty buildings layer")
	}
}
