package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{64, 48}
	MediumSize = ImageSize{320, 240}
	LargeSize  = ImageSize{640, 480}
)

// SceneObject is a filled rectangle painted into a synthetic scene.
type SceneObject struct {
	Rect  image.Rectangle
	Color color.Color
	Class int
}

// SceneConfig holds configuration for generating synthetic scenes.
type SceneConfig struct {
	Size       ImageSize
	Background color.Color
	Objects    []SceneObject
}

// DefaultSceneConfig returns a grey scene with two objects.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Size:       MediumSize,
		Background: color.RGBA{128, 128, 128, 255},
		Objects: []SceneObject{
			{Rect: image.Rect(20, 30, 120, 130), Color: color.RGBA{220, 40, 40, 255}, Class: 1},
			{Rect: image.Rect(180, 60, 300, 200), Color: color.RGBA{40, 40, 220, 255}, Class: 2},
		},
	}
}

// GenerateScene paints the configured objects over a uniform background.
func GenerateScene(config SceneConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)
	for _, obj := range config.Objects {
		draw.Draw(img, obj.Rect.Intersect(img.Bounds()), &image.Uniform{obj.Color}, image.Point{}, draw.Src)
	}
	return img
}

// SceneBoxes returns the object rectangles as inclusive (x1, y1, x2, y2) rows.
func SceneBoxes(config SceneConfig) [][]float64 {
	rows := make([][]float64, 0, len(config.Objects))
	for _, obj := range config.Objects {
		r := obj.Rect
		rows = append(rows, []float64{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X - 1), float64(r.Max.Y - 1)})
	}
	return rows
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// WriteScenes renders count default scenes into dir as scene_<i>.png and
// returns their paths.
func WriteScenes(t *testing.T, dir string, count int) []string {
	t.Helper()

	paths := make([]string, count)
	for i := range count {
		paths[i] = filepath.Join(dir, fmt.Sprintf("scene_%d.png", i))
		SaveImage(t, GenerateScene(DefaultSceneConfig()), paths[i])
	}
	return paths
}
