package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	idphoto "github.com/menta2k/idphoto"
	"github.com/menta2k/idphoto/internal/config"
	"github.com/menta2k/idphoto/internal/utils"
	"github.com/menta2k/idphoto/pkg/client"
	"github.com/menta2k/idphoto/pkg/compositor"
	"github.com/menta2k/idphoto/pkg/formats"
	"github.com/menta2k/idphoto/pkg/frame"
	"github.com/menta2k/idphoto/pkg/layout"
	"github.com/menta2k/idphoto/pkg/matting"
	"github.com/menta2k/idphoto/pkg/ollama"
	"github.com/menta2k/idphoto/pkg/processing"
	"github.com/menta2k/idphoto/pkg/segment"
	"github.com/menta2k/idphoto/pkg/types"
)

func main() {
	var in, outDir, formatName, custom, bg, ext string
	var backend, url, model, configPath string
	var zoom, rotate, panX, panY float64
	var quality, copies, spacing int
	var lossless, sheet, grid, debug bool
	var arrange, paperName string

	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "output", "output directory")
	flag.StringVar(&formatName, "format", "passport", "photo format name (see -list)")
	flag.StringVar(&custom, "custom", "", "custom format in mm, e.g. 35x45 (overrides -format)")
	flag.StringVar(&bg, "bg", "#FFFFFF", "background color as #RRGGBB")

	flag.Float64Var(&zoom, "zoom", 1.0, "zoom relative to fit (0.1..3.0)")
	flag.Float64Var(&rotate, "rotate", 0, "rotation in degrees, counter-clockwise positive")
	flag.Float64Var(&panX, "panx", 0, "horizontal pan in frame pixels")
	flag.Float64Var(&panY, "pany", 0, "vertical pan in frame pixels, positive moves content down")

	flag.StringVar(&backend, "backend", "none", "segmentation backend: ollama, matting or none")
	flag.StringVar(&url, "url", "", "segmentation server URL (defaults: ollama=http://localhost:11434, matting=http://localhost:7878)")
	flag.StringVar(&model, "model", "llava:13b", "model name for the segmentation backend")
	flag.StringVar(&configPath, "config", "", "optional JSON config file")

	flag.StringVar(&ext, "ext", "jpg", "output format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 95, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP lossless mode")

	flag.BoolVar(&sheet, "sheet", false, "also render a print sheet")
	flag.IntVar(&copies, "copies", 8, "number of copies to place on the sheet")
	flag.StringVar(&paperName, "paper", "6x4in", "paper name for the sheet (see -list)")
	flag.StringVar(&arrange, "arrange", "auto", "sheet arrangement: auto or grid")
	flag.IntVar(&spacing, "spacing", layout.DefaultSpacing, "minimum spacing between photos on the sheet (px)")
	flag.BoolVar(&grid, "grid", false, "draw alignment guides on the sheet")

	flag.BoolVar(&debug, "debug", false, "write a segmentation debug overlay")

	var ping, list bool
	flag.BoolVar(&ping, "ping", false, "check that the segmentation backend answers, then exit")
	flag.BoolVar(&list, "list", false, "list available photo formats and papers")

	flag.Parse()

	if list {
		printCatalog()
		return
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := loaded.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
		cfg = loaded
	}
	applyFlags(cfg, backend, url, model, ext, paperName, quality, spacing, outDir)

	if ping {
		if err := pingBackend(cfg); err != nil {
			log.Fatalf("backend check failed: %v", err)
		}
		log.Printf("%s backend is answering", cfg.Segmentation.Backend)
		return
	}
	if in == "" {
		log.Fatalf("usage: %s -in input.jpg|URL [-format passport] [-custom 35x45] [-zoom 1.2] [-backend ollama|matting|none] [-sheet -copies 8]", filepath.Base(os.Args[0]))
	}

	format, err := resolveFormat(formatName, custom)
	if err != nil {
		log.Fatal(err)
	}

	background, err := parseHexColor(bg)
	if err != nil {
		log.Fatal(err)
	}

	studio, segmenter, err := buildStudio(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		log.Fatal(err)
	}

	img, err := studio.LoadImage(in)
	if err != nil {
		log.Fatal(err)
	}
	b := img.Bounds()
	log.Printf("loaded %s (%dx%d)", in, b.Dx(), b.Dy())

	edit := types.EditState{
		ZoomScale:       zoom,
		RotationDegrees: rotate,
		PanOffset:       types.Point{X: panX, Y: panY},
	}

	start := time.Now()
	photo, err := studio.Process(img, format, edit, background)
	if err != nil {
		log.Fatal(err)
	}
	w, h := format.PixelSize()
	log.Printf("rendered %s (%dx%d px, %.0fx%.0f mm) in %v",
		format.Name, w, h, format.WidthMM, format.HeightMM, time.Since(start))

	processor := processing.NewProcessor()
	outPath := utils.PhotoOutputName(cfg.Output.OutputDir, format.Name, cfg.Output.Format)
	if err := processor.SaveImage(photo, outPath, cfg.Output.Format, cfg.Output.Quality, lossless); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", outPath)

	if debug && segmenter != nil {
		writeDebugOverlay(segmenter, processor, cfg, img, format, edit, background)
	}

	if sheet {
		renderSheet(cfg, processor, photo, format, copies, arrange, grid, lossless)
	}
}

// applyFlags overlays explicitly set flags on top of the loaded config.
func applyFlags(cfg *config.Config, backend, url, model, ext, paperName string, quality, spacing int, outDir string) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["backend"] || cfg.Segmentation.Backend == "" {
		cfg.Segmentation.Backend = backend
	}
	if set["url"] {
		cfg.Segmentation.URL = url
	}
	if set["model"] || cfg.Segmentation.Model == "" {
		cfg.Segmentation.Model = model
	}
	if set["ext"] {
		cfg.Output.Format = ext
	}
	if set["quality"] {
		cfg.Output.Quality = quality
	}
	if set["out"] {
		cfg.Output.OutputDir = outDir
	}
	if set["paper"] {
		cfg.Layout.Paper = paperName
	}
	if set["spacing"] {
		cfg.Layout.SpacingPx = spacing
	}
}

// pingBackend sends a tiny image to the configured backend to verify it is
// reachable and the model answers.
func pingBackend(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	canvas := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range canvas.Pix {
		canvas.Pix[i] = 0xFF
	}
	b64, err := processing.NewProcessor().PrepareImageForModel(canvas, "png", 0, 90)
	if err != nil {
		return err
	}

	switch cfg.Segmentation.Backend {
	case "ollama":
		url := cfg.Segmentation.URL
		if url == "" {
			url = "http://localhost:11434"
		}
		c, err := ollama.NewClient(url)
		if err != nil {
			return err
		}
		reply, err := c.SimpleQuery(ctx, cfg.Segmentation.Model, "Reply with the single word OK.", b64)
		if err != nil {
			return err
		}
		log.Printf("model replied: %s", strings.TrimSpace(reply))
		return nil
	case "matting":
		url := cfg.Segmentation.URL
		if url == "" {
			url = "http://localhost:7878"
		}
		c, err := matting.NewClient(url)
		if err != nil {
			return err
		}
		_, err = c.SegmentSubject(ctx, cfg.Segmentation.Model, b64)
		return err
	case "none":
		return fmt.Errorf("no backend configured, pass -backend ollama or matting")
	default:
		return fmt.Errorf("unknown backend: %s (use ollama, matting or none)", cfg.Segmentation.Backend)
	}
}

func buildStudio(cfg *config.Config) (*idphoto.Studio, *segment.Adapter, error) {
	var segClient client.SegmentClient
	var err error

	switch cfg.Segmentation.Backend {
	case "none":
		return idphoto.New(), nil, nil
	case "ollama":
		url := cfg.Segmentation.URL
		if url == "" {
			url = "http://localhost:11434"
		}
		segClient, err = ollama.NewClient(url)
	case "matting":
		url := cfg.Segmentation.URL
		if url == "" {
			url = "http://localhost:7878"
		}
		segClient, err = matting.NewClient(url)
	default:
		return nil, nil, fmt.Errorf("unknown backend: %s (use ollama, matting or none)", cfg.Segmentation.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s client: %w", cfg.Segmentation.Backend, err)
	}

	segCfg := segment.Config{
		Model:         cfg.Segmentation.Model,
		Timeout:       time.Duration(cfg.Segmentation.TimeoutSeconds * float64(time.Second)),
		MinConfidence: cfg.Segmentation.MinConfidence,
		SendMaxDim:    cfg.Segmentation.SendMaxDim,
	}
	segmenter := segment.NewWithConfig(segClient, segCfg)

	compCfg := compositor.Config{
		EdgeBlurSigma:    cfg.Compositor.EdgeBlurSigma,
		SharpenLow:       cfg.Compositor.SharpenLow,
		SharpenHigh:      cfg.Compositor.SharpenHigh,
		WhiteTolerance:   cfg.Compositor.WhiteTolerance,
		ColorTolerance:   cfg.Compositor.ColorTolerance,
		BorderSampleStep: cfg.Compositor.BorderSampleStep,
		MaxBorderColors:  cfg.Compositor.MaxBorderColors,
	}
	return idphoto.NewWithConfig(compCfg, segmenter), segmenter, nil
}

func writeDebugOverlay(segmenter *segment.Adapter, processor *processing.Processor, cfg *config.Config,
	img image.Image, format formats.PhotoFormat, edit types.EditState, background color.NRGBA) {
	rendered, err := frame.NewRenderer().Render(img, format.Frame(), edit, background)
	if err != nil {
		log.Printf("debug render failed: %v", err)
		return
	}
	mask, err := segmenter.Segment(context.Background(), rendered)
	if err != nil {
		log.Printf("debug segmentation failed: %v", err)
		return
	}
	overlay := processor.CreateDebugOverlay(rendered, types.Box{}, mask)
	path := filepath.Join(cfg.Output.OutputDir, "debug_mask.png")
	if err := processor.SaveImage(overlay, path, "png", 100, false); err != nil {
		log.Printf("debug overlay save failed: %v", err)
		return
	}
	log.Printf("wrote %s", path)
}

func renderSheet(cfg *config.Config, processor *processing.Processor, photo *image.NRGBA,
	format formats.PhotoFormat, copies int, arrange string, grid, lossless bool) {
	paper, err := formats.PaperByName(cfg.Layout.Paper)
	if err != nil {
		log.Fatal(err)
	}

	sheet := layout.NewSheetWithSpacing(paper, cfg.Layout.SpacingPx)
	for i := 0; i < copies; i++ {
		sheet.Add(photo, format)
	}

	var placed int
	switch arrange {
	case "grid":
		placed = sheet.ArrangeGrid()
	default:
		placed = sheet.AutoArrange()
	}
	if placed < copies {
		log.Printf("sheet %s fits %d of %d copies", paper.Name, placed, copies)
	} else {
		log.Printf("placed %d copies on %s", placed, paper.Name)
	}

	canvas := sheet.Render(grid || cfg.Layout.DrawGrid)
	path := utils.SheetOutputName(cfg.Output.OutputDir, cfg.Output.Format)
	if err := processor.SaveImage(canvas, path, cfg.Output.Format, cfg.Output.Quality, lossless); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", path)
}

func resolveFormat(name, custom string) (formats.PhotoFormat, error) {
	if custom != "" {
		parts := strings.SplitN(strings.ToLower(custom), "x", 2)
		if len(parts) != 2 {
			return formats.PhotoFormat{}, fmt.Errorf("invalid custom format %q, expected WxH in mm", custom)
		}
		w, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		h, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return formats.PhotoFormat{}, fmt.Errorf("invalid custom format %q, expected WxH in mm", custom)
		}
		return formats.Custom(w, h), nil
	}
	return formats.ByName(name)
}

func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q, expected #RRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func printCatalog() {
	fmt.Println("Photo formats:")
	for _, f := range formats.Catalog() {
		w, h := f.PixelSize()
		fmt.Printf("  %-12s %4.0fx%-4.0f mm  %4dx%-4d px  %s\n", f.Name, f.WidthMM, f.HeightMM, w, h, f.Description)
	}
	fmt.Println("\nPapers:")
	for _, p := range formats.Papers() {
		fmt.Printf("  %-8s %dx%d px at %d DPI\n", p.Name, p.WidthPx, p.HeightPx, formats.DPI)
	}
}
