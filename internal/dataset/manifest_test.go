package dataset

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/rcnneval/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

const manifestYAML = `classes: [__background__, car, person]
subclass_mapping: [0, 1, 1, 2]
image_root: images
images:
  - path: scene_0.png
    proposals:
      - [0, 0, 10, 10]
      - [5, 5, 50, 50]
    objects:
      - class: car
        box: [20, 30, 119, 129]
        subclass: 2
  - path: scene_1.png
`

func writeManifest(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteScenes(t, filepath.Join(dir, "images"), 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(manifestYAML), 0o600))
	return dir
}

func TestGet_OpensManifest(t *testing.T) {
	dir := writeManifest(t, "kitti_test")

	ds, err := Get("kitti_test", dir)
	require.NoError(t, err)

	assert.Equal(t, "kitti_test", ds.Name())
	assert.Equal(t, 2, ds.NumImages())
	assert.Equal(t, 3, ds.NumClasses())
	assert.Equal(t, 4, ds.NumSubclasses())
	assert.Equal(t, []int{0, 1, 1, 2}, ds.SubclassMapping())
	assert.Equal(t, filepath.Join(dir, "images", "scene_1.png"), ds.ImagePathAt(1))

	m, ok := ds.(*Manifest)
	require.True(t, ok)
	assert.Equal(t, KindKITTI, m.Spec().Kind)
	assert.Equal(t, "test", m.Spec().Split)

	img, err := LoadImage(ds.ImagePathAt(0))
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultSceneConfig().Size.Width, img.Bounds().Dx())
}

func TestManifest_RegionsGroundTruthFirst(t *testing.T) {
	ds, err := OpenManifest(filepath.Join(writeManifest(t, "m"), "m.yaml"), Spec{Name: "m"})
	require.NoError(t, err)

	r, err := ds.Regions(0)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Boxes.Rows)
	assert.Equal(t, []int{1, 0, 0}, r.GTClasses)
	assert.Equal(t, []float64{20, 30, 119, 129}, r.Boxes.Row(0))
	assert.Equal(t, []float64{5, 5, 50, 50}, r.Boxes.Row(2))

	empty, err := ds.Regions(1)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Boxes.Rows)
	assert.Equal(t, 4, empty.Boxes.Cols)

	_, err = ds.Regions(2)
	require.Error(t, err)

	require.Len(t, ds.GroundTruth(0), 1)
	assert.Equal(t, 2, ds.GroundTruth(0)[0].Subclass)
}

func TestNewManifest_DefaultsAndValidation(t *testing.T) {
	m, err := NewManifest(ManifestFile{}, ".", Spec{Name: "voc_2007_test", Kind: KindPascalVOC})
	require.NoError(t, err)
	assert.Equal(t, 21, m.NumClasses())
	assert.Equal(t, 21, m.NumSubclasses(), "identity sub-class mapping by default")
	assert.Equal(t, 7, m.SubclassMapping()[7])

	tests := []struct {
		name string
		file ManifestFile
	}{
		{name: "no classes", file: ManifestFile{}},
		{name: "background missing", file: ManifestFile{Classes: []string{"car", "person"}}},
		{name: "duplicate class", file: ManifestFile{Classes: []string{Background, "car", "car"}}},
		{name: "bad mapping", file: ManifestFile{Classes: []string{Background, "car"}, SubclassMapping: []int{0, 5}}},
		{name: "unknown object class", file: ManifestFile{
			Classes: []string{Background, "car"},
			Images:  []ManifestImage{{Path: "a.png", Objects: []ManifestObject{{Class: "bus"}}}},
		}},
		{name: "short proposal", file: ManifestFile{
			Classes: []string{Background, "car"},
			Images:  []ManifestImage{{Path: "a.png", Proposals: [][]float64{{1, 2, 3}}}},
		}},
		{name: "missing path", file: ManifestFile{Classes: []string{Background, "car"}, Images: []ManifestImage{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManifest(tt.file, ".", Spec{Name: "x", Kind: KindNTHU})
			require.Error(t, err)
		})
	}
}

func TestLoadImage_Formats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.bmp")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, testutil.CreateTestImage(7, 5, color.White)))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 7, img.Bounds().Dx())

	_, err = LoadImage(filepath.Join(dir, "notes.txt"))
	var imgErr *ImageError
	require.ErrorAs(t, err, &imgErr)

	_, err = LoadImage("")
	require.Error(t, err)

	_, err = LoadImage(filepath.Join(dir, "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewManifest_NormalizesClassNames(t *testing.T) {
	// "café" spelled with a combining accent in the class list and a
	// precomposed one on the object.
	f := ManifestFile{
		Classes: []string{Background, " cafe\u0301 "},
		Images: []ManifestImage{{
			Path:    "a.png",
			Objects: []ManifestObject{{Class: "caf\u00e9", Box: [4]float64{1, 2, 3, 4}}},
		}},
	}

	m, err := NewManifest(f, t.TempDir(), Spec{Name: "nthu_71", Kind: KindNTHU})
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", m.Classes()[1])
	require.Len(t, m.GroundTruth(0), 1)
	assert.Equal(t, 1, m.GroundTruth(0)[0].Class)
}
