// Package convert runs external floor plan conversion and VR tooling.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kaira-dev/kaira/internal/metrics"
)

// ErrTimeout reports that a conversion exceeded its configured deadline.
var ErrTimeout = errors.New("conversion timed out")

// Converter turns a floor plan image into a 3D model file on disk.
type Converter interface {
	Convert(ctx context.Context, imagePath string) (string, error)
}

// Launcher opens a generated model in an external VR viewer.
type Launcher interface {
	Launch(ctx context.Context, modelPath string) error
}

// BlenderConfig configures the Blender-based converter.
type BlenderConfig struct {
	BlenderPath     string
	FloorplanScript string
	ExportScript    string
	WorkDir         string
	Timeout         time.Duration
}

// SetDefaults fills in unset fields.
func (c *BlenderConfig) SetDefaults() {
	if c.BlenderPath == "" {
		c.BlenderPath = "blender"
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
}

// BlenderConverter runs Blender headless in two passes, first building a
// .blend project from the floor plan image, then exporting it as .glb.
type BlenderConverter struct {
	cfg BlenderConfig
}

// NewBlenderConverter creates a converter from the given config.
func NewBlenderConverter(cfg BlenderConfig) *BlenderConverter {
	cfg.SetDefaults()
	return &BlenderConverter{cfg: cfg}
}

// Convert builds a .glb model from the floor plan image and returns its path.
// The caller owns the returned file. The whole run is bounded by the
// configured timeout regardless of the caller's context.
func (c *BlenderConverter) Convert(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	metrics.ConversionsInFlight.Inc()
	defer metrics.ConversionsInFlight.Dec()
	start := time.Now()

	base := uuid.NewString()[:8]
	blendPath := filepath.Join(c.cfg.WorkDir, base+".blend")
	glbPath := filepath.Join(c.cfg.WorkDir, base+".glb")
	defer os.Remove(blendPath)

	if err := c.run(ctx, c.cfg.FloorplanScript, imagePath, blendPath); err != nil {
		return "", c.fail(err)
	}
	if err := c.run(ctx, c.cfg.ExportScript, blendPath, glbPath); err != nil {
		os.Remove(glbPath)
		return "", c.fail(err)
	}

	info, err := os.Stat(glbPath)
	if err != nil || info.Size() == 0 {
		os.Remove(glbPath)
		return "", c.fail(fmt.Errorf("conversion produced no model file"))
	}

	metrics.ConversionsTotal.WithLabelValues("success").Inc()
	metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	return glbPath, nil
}

// run invokes Blender headless with a python script. The script receives its
// input path followed by the path it must write its output to.
func (c *BlenderConverter) run(ctx context.Context, script, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, c.cfg.BlenderPath,
		"-noaudio", "--background", "--python", script, "--", inputPath, outputPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
		}
		if out := stderr.String(); out != "" {
			log.Printf("blender stderr: %s", out)
		}
		return fmt.Errorf("blender run %s: %w", filepath.Base(script), err)
	}
	return nil
}

func (c *BlenderConverter) fail(err error) error {
	result := "failure"
	if errors.Is(err, ErrTimeout) {
		result = "timeout"
	}
	metrics.ConversionsTotal.WithLabelValues(result).Inc()
	return err
}
