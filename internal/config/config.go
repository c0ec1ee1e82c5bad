package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Segmentation SegmentationConfig `json:"segmentation"`
	Compositor   CompositorConfig   `json:"compositor"`
	Layout       LayoutConfig       `json:"layout"`
	Output       OutputConfig       `json:"output"`
}

// SegmentationConfig selects and tunes the segmentation backend
type SegmentationConfig struct {
	Backend        string  `json:"backend"` // "ollama", "matting" or "none"
	URL            string  `json:"url"`
	Model          string  `json:"model"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	MinConfidence  float64 `json:"min_confidence"`
	SendMaxDim     int     `json:"send_max_dim"`
}

// CompositorConfig tunes background replacement
type CompositorConfig struct {
	EdgeBlurSigma    float64 `json:"edge_blur_sigma"`
	SharpenLow       float64 `json:"sharpen_low"`
	SharpenHigh      float64 `json:"sharpen_high"`
	WhiteTolerance   float64 `json:"white_tolerance"`
	ColorTolerance   float64 `json:"color_tolerance"`
	BorderSampleStep int     `json:"border_sample_step"`
	MaxBorderColors  int     `json:"max_border_colors"`
}

// LayoutConfig tunes print-sheet arrangement
type LayoutConfig struct {
	Paper     string `json:"paper"`
	SpacingPx int    `json:"spacing_px"`
	DrawGrid  bool   `json:"draw_grid"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format"` // jpg, png or webp
	Quality   int    `json:"quality"`
	OutputDir string `json:"output_dir"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Segmentation: SegmentationConfig{
			Backend:        "none",
			URL:            "",
			Model:          "",
			TimeoutSeconds: 5,
			MinConfidence:  0.2,
			SendMaxDim:     768,
		},
		Compositor: CompositorConfig{
			EdgeBlurSigma:    1.5,
			SharpenLow:       0.35,
			SharpenHigh:      0.65,
			WhiteTolerance:   0.25,
			ColorTolerance:   0.15,
			BorderSampleStep: 8,
			MaxBorderColors:  3,
		},
		Layout: LayoutConfig{
			Paper:     "6x4in",
			SpacingPx: 4,
			DrawGrid:  false,
		},
		Output: OutputConfig{
			Format:    "jpg",
			Quality:   95,
			OutputDir: "./output",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Segmentation.Backend {
	case "ollama", "matting", "none":
	default:
		return fmt.Errorf("segmentation.backend must be one of ollama, matting, none")
	}

	if c.Segmentation.TimeoutSeconds <= 0 {
		return fmt.Errorf("segmentation.timeout_seconds must be positive")
	}

	if c.Segmentation.MinConfidence < 0 || c.Segmentation.MinConfidence > 1 {
		return fmt.Errorf("segmentation.min_confidence must be between 0 and 1")
	}

	if c.Compositor.EdgeBlurSigma < 0 {
		return fmt.Errorf("compositor.edge_blur_sigma must not be negative")
	}

	if c.Compositor.WhiteTolerance <= 0 || c.Compositor.WhiteTolerance > 1 {
		return fmt.Errorf("compositor.white_tolerance must be between 0 and 1")
	}

	if c.Compositor.ColorTolerance <= 0 || c.Compositor.ColorTolerance > 1 {
		return fmt.Errorf("compositor.color_tolerance must be between 0 and 1")
	}

	if c.Compositor.SharpenLow > c.Compositor.SharpenHigh {
		return fmt.Errorf("compositor.sharpen_low must not exceed compositor.sharpen_high")
	}

	if c.Layout.SpacingPx < 0 {
		return fmt.Errorf("layout.spacing_px must not be negative")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Output.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be one of jpg, png, webp")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "idphoto", "config.json")
}
