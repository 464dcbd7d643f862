package eval

import "time"

// ImageEvent describes one finished image.
type ImageEvent struct {
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Path       string        `json:"path"`
	Detections int           `json:"detections"`
	DetectTime time.Duration `json:"detect_time"`
	MiscTime   time.Duration `json:"misc_time"`
}

// Observer receives progress of a pass. Calls arrive from the goroutine
// running the pass, in order.
type Observer interface {
	// OnStart is called once with the number of images to process.
	OnStart(dataset string, total int)

	// OnImage is called after each image has been detected and selected.
	OnImage(ev ImageEvent)

	// OnThreshold is called whenever a class threshold is raised.
	OnThreshold(class int, value float64)

	// OnComplete is called with the final summary of a successful pass.
	OnComplete(s Summary)
}

// NoOpObserver implements Observer but does nothing.
type NoOpObserver struct{}

func (NoOpObserver) OnStart(string, int)      {}
func (NoOpObserver) OnImage(ImageEvent)       {}
func (NoOpObserver) OnThreshold(int, float64) {}
func (NoOpObserver) OnComplete(Summary)       {}

// Observers fans every callback out to each member in order.
type Observers []Observer

func (o Observers) OnStart(dataset string, total int) {
	for _, x := range o {
		x.OnStart(dataset, total)
	}
}

func (o Observers) OnImage(ev ImageEvent) {
	for _, x := range o {
		x.OnImage(ev)
	}
}

func (o Observers) OnThreshold(class int, value float64) {
	for _, x := range o {
		x.OnThreshold(class, value)
	}
}

func (o Observers) OnComplete(s Summary) {
	for _, x := range o {
		x.OnComplete(s)
	}
}
