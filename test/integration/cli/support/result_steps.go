package support

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/rcnneval/internal/dataset"
	"github.com/MeKo-Tech/rcnneval/internal/results"
	"github.com/cucumber/godog"
)

// theArtifactShouldHoldRecords reloads detections.gob and counts its records.
func (testCtx *TestContext) theArtifactShouldHoldRecords(want int) error {
	if testCtx.Fixture == nil {
		return errors.New("no dataset fixture written yet")
	}
	fx := testCtx.Fixture
	t, err := results.Load(filepath.Join(testCtx.OutputDir, results.ArtifactName), fx.NumClasses, fx.NumImages)
	if err != nil {
		return err
	}
	if got := t.Count(); got != want {
		return fmt.Errorf("artifact holds %d records, want %d", got, want)
	}
	return nil
}

// theReportShouldCountObjects checks the ground-truth total of report.yaml.
func (testCtx *TestContext) theReportShouldCountObjects(want int) error {
	rep, err := dataset.ReadReport(testCtx.OutputDir)
	if err != nil {
		return err
	}
	if rep.GroundTruth != want {
		return fmt.Errorf("report counts %d objects, want %d", rep.GroundTruth, want)
	}
	return nil
}

// theMeanAPShouldBeAtLeast checks the detection quality in report.yaml.
func (testCtx *TestContext) theMeanAPShouldBeAtLeast(want float64) error {
	rep, err := dataset.ReadReport(testCtx.OutputDir)
	if err != nil {
		return err
	}
	if rep.MeanAP < want {
		return fmt.Errorf("mean AP %.4f below %.4f", rep.MeanAP, want)
	}
	return nil
}

// RegisterResultSteps registers artifact and report step definitions.
func (testCtx *TestContext) RegisterResultSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the artifact should hold (\d+) records$`, testCtx.theArtifactShouldHoldRecords)
	sc.Step(`^the report should count (\d+) ground-truth objects$`, testCtx.theReportShouldCountObjects)
	sc.Step(`^the mean AP should be at least ([\d.]+)$`, testCtx.theMeanAPShouldBeAtLeast)
}
