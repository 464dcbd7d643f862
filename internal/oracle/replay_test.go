package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replayYAML = `calls:
  - cls_prob:
      - [0.9, 0.1]
      - [0.2, 0.8]
    bbox_pred:
      - [0, 0, 0, 0, 0, 0, 0, 0]
      - [0, 0, 0, 0, 0, 0, 0, 0]
  - cls_prob:
      - [0.5, 0.5]
`

func TestLoadReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(replayYAML), 0o600))

	r, err := LoadReplay(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Remaining())

	ctx := context.Background()
	first, err := r.Score(ctx, Input{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.ClassProbs.Rows)
	assert.Equal(t, 8, first.BoxDeltas.Cols)

	second, err := r.Score(ctx, Input{})
	require.NoError(t, err)
	assert.Nil(t, second.BoxDeltas)
	assert.Equal(t, 0, r.Remaining())

	_, err = r.Score(ctx, Input{})
	require.ErrorIs(t, err, ErrReplayExhausted)
}

func TestNewReplay_Errors(t *testing.T) {
	_, err := NewReplay(ReplayFile{Calls: []ReplayCall{{"cls_prob": {{1, 2}, {3}}}}})
	require.Error(t, err)

	_, err = NewReplay(ReplayFile{Calls: []ReplayCall{{"fc7": {{1}}}}})
	require.Error(t, err)
}

func TestLoadReplay_MissingFile(t *testing.T) {
	_, err := LoadReplay(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestReplay_CanceledContext(t *testing.T) {
	r, err := NewReplay(ReplayFile{Calls: []ReplayCall{{"cls_prob": {{1}}}}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Score(ctx, Input{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.Remaining())
}
