package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/geometry"
	"github.com/MeKo-Tech/rcnneval/internal/results"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Background is the name of class 0.
const Background = "__background__"

// defaultClasses are used when a manifest of a known family omits its class list.
var defaultClasses = map[Kind][]string{
	KindPascalVOC: {
		Background, "aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat",
		"chair", "cow", "diningtable", "dog", "horse", "motorbike", "person", "pottedplant",
		"sheep", "sofa", "train", "tvmonitor",
	},
	KindKITTI: {Background, "Car", "Pedestrian", "Cyclist"},
}

// ManifestObject is one annotated object.
type ManifestObject struct {
	Class    string     `yaml:"class"`
	Box      [4]float64 `yaml:"box"`
	Subclass int        `yaml:"subclass,omitempty"`
}

// ManifestImage is one image with its proposals and annotations.
type ManifestImage struct {
	Path      string           `yaml:"path"`
	Proposals [][]float64      `yaml:"proposals,omitempty"`
	Objects   []ManifestObject `yaml:"objects,omitempty"`
}

// ManifestFile is the on-disk layout of a dataset manifest.
type ManifestFile struct {
	Classes         []string        `yaml:"classes,omitempty"`
	SubclassMapping []int           `yaml:"subclass_mapping,omitempty"`
	ImageRoot       string          `yaml:"image_root,omitempty"`
	Images          []ManifestImage `yaml:"images"`
}

// Object is a resolved ground-truth annotation.
type Object struct {
	Class    int
	Box      geometry.Box
	Subclass int
}

// Manifest is a Dataset backed by a YAML manifest.
type Manifest struct {
	spec     Spec
	root     string
	classes  []string
	mapping  []int
	images   []ManifestImage
	objects  [][]Object
	classIdx map[string]int
}

// OpenManifest reads and validates a manifest file.
func OpenManifest(path string, spec Spec) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset manifest: %w", err)
	}
	var f ManifestFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse dataset manifest %s: %w", path, err)
	}
	return NewManifest(f, filepath.Dir(path), spec)
}

// NewManifest builds a dataset from an already parsed manifest. Relative
// image paths resolve against baseDir joined with ImageRoot.
func NewManifest(f ManifestFile, baseDir string, spec Spec) (*Manifest, error) {
	classes := make([]string, 0, len(f.Classes))
	for _, c := range f.Classes {
		classes = append(classes, normalizeClass(c))
	}
	if len(classes) == 0 {
		classes = defaultClasses[spec.Kind]
	}
	if len(classes) < 2 {
		return nil, errors.New("dataset needs a background class and at least one object class")
	}
	if classes[0] != Background {
		return nil, fmt.Errorf("class 0 must be %q, got %q", Background, classes[0])
	}

	m := &Manifest{
		spec:     spec,
		root:     filepath.Join(baseDir, f.ImageRoot),
		classes:  classes,
		images:   f.Images,
		classIdx: make(map[string]int, len(classes)),
	}
	for j, c := range classes {
		if _, dup := m.classIdx[c]; dup {
			return nil, fmt.Errorf("duplicate class %q", c)
		}
		m.classIdx[c] = j
	}

	m.mapping = f.SubclassMapping
	if len(m.mapping) == 0 {
		m.mapping = make([]int, len(classes))
		for j := range m.mapping {
			m.mapping[j] = j
		}
	}
	for s, c := range m.mapping {
		if c < 0 || c >= len(classes) {
			return nil, fmt.Errorf("sub-class %d maps to unknown class %d", s, c)
		}
	}

	m.objects = make([][]Object, len(f.Images))
	for i, img := range f.Images {
		if img.Path == "" {
			return nil, fmt.Errorf("image %d has no path", i)
		}
		for k, p := range img.Proposals {
			if len(p) != 4 {
				return nil, fmt.Errorf("image %d proposal %d has %d values, want 4", i, k, len(p))
			}
		}
		for k, obj := range img.Objects {
			j, ok := m.classIdx[normalizeClass(obj.Class)]
			if !ok || j == 0 {
				return nil, fmt.Errorf("image %d object %d has unknown class %q", i, k, obj.Class)
			}
			m.objects[i] = append(m.objects[i], Object{
				Class:    j,
				Box:      geometry.BoxFromSlice(obj.Box[:]),
				Subclass: obj.Subclass,
			})
		}
	}
	return m, nil
}

// Name returns the registered dataset name.
func (m *Manifest) Name() string { return m.spec.Name }

// Spec returns the registry entry the manifest was opened for.
func (m *Manifest) Spec() Spec { return m.spec }

// Classes returns the class names, background first.
func (m *Manifest) Classes() []string { return m.classes }

// NumImages returns the number of images.
func (m *Manifest) NumImages() int { return len(m.images) }

// NumClasses returns the number of classes including background.
func (m *Manifest) NumClasses() int { return len(m.classes) }

// NumSubclasses returns the number of sub-classes.
func (m *Manifest) NumSubclasses() int { return len(m.mapping) }

// SubclassMapping returns the class of every sub-class.
func (m *Manifest) SubclassMapping() []int { return m.mapping }

// ImagePathAt returns the file path of image i.
func (m *Manifest) ImagePathAt(i int) string {
	p := m.images[i].Path
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.root, p)
}

// GroundTruth returns the annotated objects of image i.
func (m *Manifest) GroundTruth(i int) []Object { return m.objects[i] }

// Regions returns the ground-truth boxes followed by the proposals of image i.
func (m *Manifest) Regions(i int) (Regions, error) {
	if i < 0 || i >= len(m.images) {
		return Regions{}, fmt.Errorf("image index %d out of range [0, %d)", i, len(m.images))
	}
	objs := m.objects[i]
	props := m.images[i].Proposals
	boxes := blob.NewMatrix(len(objs)+len(props), 4)
	gt := make([]int, boxes.Rows)
	for k, o := range objs {
		copy(boxes.Row(k), []float64{o.Box.X1, o.Box.Y1, o.Box.X2, o.Box.Y2})
		gt[k] = o.Class
	}
	for k, p := range props {
		copy(boxes.Row(len(objs)+k), p)
	}
	return Regions{Boxes: boxes, GTClasses: gt}, nil
}

// EvaluateDetections scores t against the annotations and writes the report.
func (m *Manifest) EvaluateDetections(t *results.Table, outputDir string) error {
	if err := t.Validate(m.NumClasses(), m.NumImages()); err != nil {
		return err
	}
	return WriteReport(outputDir, EvaluateDetections(m.Name(), m.classes, m.objects, t))
}

// EvaluateProposals measures ground-truth coverage of t and writes the report.
func (m *Manifest) EvaluateProposals(t *results.Table, outputDir string) error {
	if err := t.Validate(m.NumClasses(), m.NumImages()); err != nil {
		return err
	}
	return WriteReport(outputDir, EvaluateProposals(m.Name(), m.objects, t))
}

// normalizeClass makes class names written in different Unicode forms or
// with stray whitespace compare equal.
func normalizeClass(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
