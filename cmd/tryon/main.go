// Command tryon runs the half-body try-on pipeline over a scripted pose
// sequence and writes the composited frames as PNGs. It exercises the
// full path (stabilizer, geometry, warp, freeze, compositor) without a
// camera or a real pose detector.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/geo/r2"

	"github.com/vastravista/tryon/internal/config"
	"github.com/vastravista/tryon/internal/tryon"
	"github.com/vastravista/tryon/internal/tryon/tryondb"
	"github.com/vastravista/tryon/internal/version"
)

const (
	frameWidth  = 480
	frameHeight = 640
)

func main() {
	garment := flag.String("garment", "tshirt", "garment type (tshirt, shirt, kurta, dress, hoodie, jacket)")
	colorHex := flag.String("color", "#3366cc", "garment tint as #RRGGBB")
	frames := flag.Int("n", 30, "number of frames")
	outDir := flag.String("o", "out", "output directory for PNG frames")
	dbPath := flag.String("db", "", "optional diagnostics sqlite path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tryon %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.MustLoadDefaultConfig()

	var opts []tryon.Option
	if *dbPath != "" {
		db, err := tryondb.Open(*dbPath)
		if err != nil {
			log.Fatalf("open diagnostics db: %v", err)
		}
		defer db.Close()
		rec := tryondb.NewRecorder(db, cfg.GetDiagnosticsFlushInterval(), nil)
		defer rec.Close()
		opts = append(opts, tryon.WithFrameObserver(rec))
	}

	engine := tryon.NewEngine(scriptedWalk(*frames), tryon.NewProceduralStore(), cfg, opts...)
	defer engine.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	session := engine.NewSession()
	background := syntheticBackground()

	ctx := context.Background()
	for i := 0; i < *frames; i++ {
		res, err := engine.ProcessFrame(ctx, session, background, *garment, *colorHex)
		if err != nil {
			log.Printf("frame %d: %v", i, err)
			continue
		}
		path := filepath.Join(*outDir, fmt.Sprintf("frame_%03d.png", i))
		if err := writePNG(path, res.Image); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		log.Printf("frame %d: confidence=%.2f frozen=%v phase=%s", i, res.Confidence, res.Frozen, res.Phase)
	}
	log.Printf("✓ Wrote %d frames to %s", *frames, *outDir)
}

// scriptedWalk builds a detector script: a subject swaying gently, with a
// low-confidence dip in the middle third to show the freeze behaviour.
func scriptedWalk(n int) *tryon.ScriptedDetector {
	detections := make([]*tryon.RawDetection, 0, n)
	for i := 0; i < n; i++ {
		phase := float64(i) * 0.2
		sway := 12 * math.Sin(phase)
		conf := 0.92
		if i >= n/3 && i < n/2 {
			conf = 0.35
		}
		cx := float64(frameWidth) / 2
		detections = append(detections, &tryon.RawDetection{
			UnixNanos: time.Now().UnixNano() + int64(i)*33_000_000,
			Landmarks: map[tryon.LandmarkName]tryon.Landmark{
				tryon.LeftShoulder: {
					Name:       tryon.LeftShoulder,
					At:         r2.Point{X: cx - 90 + sway, Y: 210 + 2*math.Cos(phase)},
					Confidence: conf,
				},
				tryon.RightShoulder: {
					Name:       tryon.RightShoulder,
					At:         r2.Point{X: cx + 90 + sway, Y: 214 - 2*math.Cos(phase)},
					Confidence: conf,
				},
				tryon.Nose: {
					Name:       tryon.Nose,
					At:         r2.Point{X: cx + sway, Y: 120},
					Confidence: conf,
				},
			},
		})
	}
	return &tryon.ScriptedDetector{Detections: detections}
}

// syntheticBackground paints a vertical gradient stand-in for a camera
// frame.
func syntheticBackground() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	for y := 0; y < frameHeight; y++ {
		shade := uint8(40 + 120*y/frameHeight)
		for x := 0; x < frameWidth; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: shade, G: shade, B: shade + 30, A: 0xff})
		}
	}
	return img
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
