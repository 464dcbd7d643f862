// Package synth writes self-contained evaluation fixtures: rendered scenes,
// a dataset manifest and the recorded network responses for every scene.
// A fixture runs through the whole pipeline with the replay backend.
package synth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/rcnneval/internal/dataset"
	"github.com/MeKo-Tech/rcnneval/internal/oracle"
	"github.com/MeKo-Tech/rcnneval/internal/testutil"
	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"
)

// Classes are the class names every fixture declares.
var Classes = []string{dataset.Background, "Car", "Pedestrian", "Cyclist"}

// Scores written for each region kind. Proposals score their object's class
// at ProposalScore and nothing else above zero besides the background.
const (
	GroundTruthScore = 1.0
	ProposalScore    = 0.8
)

// proposalInset shrinks each object box into its proposal.
const proposalInset = 2

// Fixture describes the files written by Write.
type Fixture struct {
	Dir        string
	Dataset    string
	Manifest   string
	Replay     string
	Config     string
	NumImages  int
	NumClasses int
	// ObjectsPerImage is also the number of proposals and of selected
	// detections per image.
	ObjectsPerImage int
}

// Write renders count scenes into dir/images and writes dir/<name>.yaml,
// dir/replay.yaml and dir/rcnneval.yaml. The config disables box
// regression and deduplication so replayed rows line up with the regions.
func Write(dir, name string, count int) (Fixture, error) {
	if count <= 0 {
		return Fixture{}, errors.New("fixture needs at least one image")
	}
	scene := testutil.DefaultSceneConfig()
	fx := Fixture{
		Dir:             dir,
		Dataset:         name,
		Manifest:        filepath.Join(dir, name+".yaml"),
		Replay:          filepath.Join(dir, "replay.yaml"),
		Config:          filepath.Join(dir, "rcnneval.yaml"),
		NumImages:       count,
		NumClasses:      len(Classes),
		ObjectsPerImage: len(scene.Objects),
	}

	imageDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imageDir, 0o750); err != nil {
		return Fixture{}, fmt.Errorf("failed to create image directory: %w", err)
	}

	objects, proposals, err := annotate(scene)
	if err != nil {
		return Fixture{}, err
	}
	manifest := dataset.ManifestFile{Classes: Classes, ImageRoot: "images"}
	img := testutil.GenerateScene(scene)
	for i := range count {
		file := fmt.Sprintf("scene_%d.png", i)
		if err := imaging.Save(img, filepath.Join(imageDir, file)); err != nil {
			return Fixture{}, fmt.Errorf("failed to write scene: %w", err)
		}
		manifest.Images = append(manifest.Images, dataset.ManifestImage{
			Path:      file,
			Proposals: proposals,
			Objects:   objects,
		})
	}
	if err := writeYAML(fx.Manifest, manifest); err != nil {
		return Fixture{}, err
	}

	scores := regionScores(scene)
	var replay oracle.ReplayFile
	for range count {
		replay.Calls = append(replay.Calls, oracle.ReplayCall{oracle.OutputProb: scores})
	}
	if err := writeYAML(fx.Replay, replay); err != nil {
		return Fixture{}, err
	}

	err = writeYAML(fx.Config, map[string]any{
		"dedup_boxes": 0,
		"test":        map[string]any{"bbox_reg": false},
	})
	return fx, err
}

// WriteEmptyReplay replaces the replay with one that has no recorded calls.
func (fx Fixture) WriteEmptyReplay() error {
	return writeYAML(fx.Replay, oracle.ReplayFile{})
}

func annotate(scene testutil.SceneConfig) ([]dataset.ManifestObject, [][]float64, error) {
	boxes := testutil.SceneBoxes(scene)
	objects := make([]dataset.ManifestObject, len(boxes))
	proposals := make([][]float64, len(boxes))
	for k, b := range boxes {
		class := scene.Objects[k].Class
		if class <= 0 || class >= len(Classes) {
			return nil, nil, fmt.Errorf("scene object %d has class %d outside the fixture classes", k, class)
		}
		objects[k] = dataset.ManifestObject{Class: Classes[class], Box: [4]float64{b[0], b[1], b[2], b[3]}}
		proposals[k] = []float64{b[0] + proposalInset, b[1] + proposalInset, b[2] - proposalInset, b[3] - proposalInset}
	}
	return objects, proposals, nil
}

// regionScores lays out one probability row per region, ground truth first.
func regionScores(scene testutil.SceneConfig) [][]float64 {
	n := len(scene.Objects)
	rows := make([][]float64, 0, 2*n)
	for _, obj := range scene.Objects {
		row := make([]float64, len(Classes))
		row[obj.Class] = GroundTruthScore
		rows = append(rows, row)
	}
	for _, obj := range scene.Objects {
		row := make([]float64, len(Classes))
		row[0] = 1 - ProposalScore
		row[obj.Class] = ProposalScore
		rows = append(rows, row)
	}
	return rows
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
