package support

import (
	"errors"

	"github.com/MeKo-Tech/rcnneval/internal/dataset"
	"github.com/MeKo-Tech/rcnneval/internal/synth"
	"github.com/cucumber/godog"
)

// aDatasetWithScenes writes a synthetic fixture registered under name.
func (testCtx *TestContext) aDatasetWithScenes(name string, count int) error {
	fx, err := synth.Write(testCtx.DataDir, name, count)
	if err != nil {
		return err
	}
	testCtx.Fixture = &fx
	testCtx.ConfigFile = fx.Config
	testCtx.ReplayFile = fx.Replay
	return nil
}

// recordedNetworkOutputs keeps the replay written with the fixture.
func (testCtx *TestContext) recordedNetworkOutputs() error {
	if testCtx.Fixture == nil {
		return errors.New("no dataset fixture written yet")
	}
	return nil
}

// noRecordedNetworkOutputs empties the replay so any scoring call fails.
func (testCtx *TestContext) noRecordedNetworkOutputs() error {
	if testCtx.Fixture == nil {
		return errors.New("no dataset fixture written yet")
	}
	return testCtx.Fixture.WriteEmptyReplay()
}

// aReportFromAnEarlierRun leaves a report in the output directory.
func (testCtx *TestContext) aReportFromAnEarlierRun() error {
	return dataset.WriteReport(testCtx.OutputDir, dataset.Report{Dataset: "voc_2007_test", MeanAP: 0.5})
}

// RegisterDatasetSteps registers fixture step definitions.
func (testCtx *TestContext) RegisterDatasetSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a "([^"]*)" dataset with (\d+) scenes?$`, testCtx.aDatasetWithScenes)
	sc.Step(`^recorded network outputs for every scene$`, testCtx.recordedNetworkOutputs)
	sc.Step(`^no recorded network outputs$`, testCtx.noRecordedNetworkOutputs)
	sc.Step(`^a report from an earlier run in the output directory$`, testCtx.aReportFromAnEarlierRun)
}
