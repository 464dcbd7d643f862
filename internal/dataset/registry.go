package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// ErrUnknownDataset is returned for names missing from the registry.
var ErrUnknownDataset = errors.New("unknown dataset")

// Kind identifies the family a registered dataset belongs to.
type Kind string

// Dataset families.
const (
	KindPascalVOC     Kind = "pascal_voc"
	KindKITTI         Kind = "kitti"
	KindPascal3D      Kind = "pascal3d"
	KindObjectNet3D   Kind = "objectnet3d"
	KindNissan        Kind = "nissan"
	KindNTHU          Kind = "nthu"
	KindKITTITracking Kind = "kitti_tracking"
	KindMOTTracking   Kind = "mot_tracking"
)

// Spec describes one registered dataset.
type Spec struct {
	Name  string
	Kind  Kind
	Split string
}

// Constructor opens a dataset whose files live under dataDir.
type Constructor func(dataDir string) (Dataset, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

func init() {
	for _, split := range []string{"train", "val", "trainval", "test"} {
		registerManifest(Spec{Name: "voc_2007_" + split, Kind: KindPascalVOC, Split: split})
		registerManifest(Spec{Name: "kitti_" + split, Kind: KindKITTI, Split: split})
	}
	for _, split := range []string{"train", "val"} {
		registerManifest(Spec{Name: "pascal3d_" + split, Kind: KindPascal3D, Split: split})
	}
	for _, split := range []string{"train", "val", "trainval", "test", "test_1", "test_2", "debug"} {
		registerManifest(Spec{Name: "objectnet3d_" + split, Kind: KindObjectNet3D, Split: split})
	}
	registerManifest(Spec{Name: "nissan_autonomy_log_2016-04-11-12-15-46", Kind: KindNissan,
		Split: "autonomy_log_2016-04-11-12-15-46"})
	for _, split := range []string{"71", "370"} {
		registerManifest(Spec{Name: "nthu_" + split, Kind: KindNTHU, Split: split})
	}

	for _, split := range append(sequences(21), "train", "trainval") {
		registerManifest(Spec{Name: "kitti_tracking_training_" + split, Kind: KindKITTITracking, Split: split})
	}
	for _, split := range sequences(29) {
		registerManifest(Spec{Name: "kitti_tracking_testing_" + split, Kind: KindKITTITracking, Split: split})
	}

	for _, split := range []string{
		"TUD-Stadtmitte", "TUD-Campus", "PETS09-S2L1", "ETH-Bahnhof", "ETH-Sunnyday",
		"ETH-Pedcross2", "ADL-Rundle-6", "ADL-Rundle-8", "KITTI-13", "KITTI-17", "Venice-2",
		"train", "trainval",
	} {
		registerManifest(Spec{Name: "mot_tracking_train_" + split, Kind: KindMOTTracking, Split: split})
	}
	for _, split := range []string{
		"TUD-Crossing", "PETS09-S2L2", "ETH-Jelmoli", "ETH-Linthescher", "ETH-Crossing",
		"AVG-TownCentre", "ADL-Rundle-1", "ADL-Rundle-3", "KITTI-16", "KITTI-19", "Venice-1",
	} {
		registerManifest(Spec{Name: "mot_tracking_test_" + split, Kind: KindMOTTracking, Split: split})
	}
}

// sequences returns zero-padded sequence ids 0000 .. n-1.
func sequences(n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = fmt.Sprintf("%04d", i)
	}
	return out
}

func registerManifest(spec Spec) {
	if err := Register(spec.Name, func(dataDir string) (Dataset, error) {
		return OpenManifest(filepath.Join(dataDir, spec.Name+".yaml"), spec)
	}); err != nil {
		panic(err)
	}
}

// Register adds a constructor under name. Names can be registered once.
func Register(name string, c Constructor) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("dataset %q already registered", name)
	}
	registry[name] = c
	return nil
}

// Get opens the dataset registered under name.
func Get(name, dataDir string) (Dataset, error) {
	registryMu.RLock()
	c, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return c(dataDir)
}

// List returns every registered name, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
