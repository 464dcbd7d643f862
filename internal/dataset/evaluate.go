package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/rcnneval/internal/geometry"
	"github.com/MeKo-Tech/rcnneval/internal/results"
	"gopkg.in/yaml.v3"
)

const (
	// ReportName is the file the evaluator writes into the output directory.
	ReportName = "report.yaml"

	// MatchIoU is the overlap a detection needs to count as a hit.
	MatchIoU = 0.5
)

// ProposalIoUs are the overlaps proposal recall is reported at.
var ProposalIoUs = []float64{0.5, 0.7}

// ClassReport summarizes one class.
type ClassReport struct {
	Class         string  `yaml:"class"`
	Detections    int     `yaml:"detections"`
	GroundTruth   int     `yaml:"ground_truth"`
	TruePositives int     `yaml:"true_positives"`
	Recall        float64 `yaml:"recall"`
	AP            float64 `yaml:"ap"`
}

// RecallAt is proposal recall at one overlap threshold.
type RecallAt struct {
	IoU    float64 `yaml:"iou"`
	Recall float64 `yaml:"recall"`
}

// Report is the evaluation outcome written to report.yaml.
type Report struct {
	Dataset           string        `yaml:"dataset"`
	Mode              string        `yaml:"mode"`
	Classes           []ClassReport `yaml:"classes,omitempty"`
	MeanAP            float64       `yaml:"mean_ap,omitempty"`
	ProposalRecall    []RecallAt    `yaml:"proposal_recall,omitempty"`
	ProposalsPerImage float64       `yaml:"proposals_per_image,omitempty"`
	GroundTruth       int           `yaml:"ground_truth"`
}

// EvaluateDetections matches detections to ground truth class by class. A
// detection is a hit when it overlaps an unmatched object of its class by at
// least MatchIoU; higher scores claim objects first.
func EvaluateDetections(name string, classes []string, objects [][]Object, t *results.Table) Report {
	rep := Report{Dataset: name, Mode: "detections"}
	var apSum float64
	var apCount int
	for j := 1; j < len(classes); j++ {
		cr := evaluateClass(j, objects, t)
		cr.Class = classes[j]
		rep.Classes = append(rep.Classes, cr)
		rep.GroundTruth += cr.GroundTruth
		if cr.GroundTruth > 0 {
			apSum += cr.AP
			apCount++
		}
	}
	if apCount > 0 {
		rep.MeanAP = apSum / float64(apCount)
	}
	return rep
}

type scoredDetection struct {
	image int
	rec   results.Record
}

func evaluateClass(class int, objects [][]Object, t *results.Table) ClassReport {
	var cr ClassReport
	matched := make([][]bool, len(objects))
	for i, objs := range objects {
		matched[i] = make([]bool, len(objs))
		for _, o := range objs {
			if o.Class == class {
				cr.GroundTruth++
			}
		}
	}

	var dets []scoredDetection
	for i := range t.NumImages {
		for _, r := range t.Get(class, i) {
			dets = append(dets, scoredDetection{image: i, rec: r})
		}
	}
	sort.SliceStable(dets, func(a, b int) bool { return dets[a].rec.Score > dets[b].rec.Score })
	cr.Detections = len(dets)

	recall := make([]float64, len(dets))
	precision := make([]float64, len(dets))
	tp := 0
	for k, d := range dets {
		best, bestIoU := -1, 0.0
		for o, obj := range objects[d.image] {
			if obj.Class != class {
				continue
			}
			if iou := geometry.IoU(d.rec.Box, obj.Box); iou > bestIoU {
				best, bestIoU = o, iou
			}
		}
		if best >= 0 && bestIoU >= MatchIoU && !matched[d.image][best] {
			matched[d.image][best] = true
			tp++
		}
		if cr.GroundTruth > 0 {
			recall[k] = float64(tp) / float64(cr.GroundTruth)
		}
		precision[k] = float64(tp) / float64(k+1)
	}
	cr.TruePositives = tp
	if cr.GroundTruth > 0 {
		cr.Recall = float64(tp) / float64(cr.GroundTruth)
	}
	cr.AP = ElevenPointAP(recall, precision)
	return cr
}

// ElevenPointAP averages the best precision reached at recall levels
// 0, 0.1, ..., 1.
func ElevenPointAP(recall, precision []float64) float64 {
	var ap float64
	for step := range 11 {
		level := float64(step) / 10
		best := 0.0
		for k, r := range recall {
			if r >= level && precision[k] > best {
				best = precision[k]
			}
		}
		ap += best / 11
	}
	return ap
}

// EvaluateProposals reports the share of ground-truth objects covered by at
// least one proposal of the same image, regardless of class.
func EvaluateProposals(name string, objects [][]Object, t *results.Table) Report {
	rep := Report{Dataset: name, Mode: "proposals"}
	covered := make([]int, len(ProposalIoUs))
	proposals := 0
	for i, objs := range objects {
		var boxes []geometry.Box
		for j := range t.NumClasses {
			for _, r := range t.Get(j, i) {
				boxes = append(boxes, r.Box)
			}
		}
		proposals += len(boxes)
		for _, obj := range objs {
			rep.GroundTruth++
			best := 0.0
			for _, b := range boxes {
				best = max(best, geometry.IoU(obj.Box, b))
			}
			for k, thr := range ProposalIoUs {
				if best >= thr {
					covered[k]++
				}
			}
		}
	}
	for k, thr := range ProposalIoUs {
		r := RecallAt{IoU: thr}
		if rep.GroundTruth > 0 {
			r.Recall = float64(covered[k]) / float64(rep.GroundTruth)
		}
		rep.ProposalRecall = append(rep.ProposalRecall, r)
	}
	if len(objects) > 0 {
		rep.ProposalsPerImage = float64(proposals) / float64(len(objects))
	}
	return rep
}

// WriteReport writes rep as YAML into dir.
func WriteReport(dir string, rep Report) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ReportName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(dir string) (Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportName)) //nolint:gosec // G304: output dir from configuration
	if err != nil {
		return Report{}, fmt.Errorf("failed to read report: %w", err)
	}
	var rep Report
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("failed to parse report: %w", err)
	}
	return rep, nil
}
