package generation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func writeMIDI(t *testing.T, path string, key uint8) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	s := smf.New()
	tr := smf.Track{}
	tr.Add(0, smf.MetaTrackSequenceName("Bass"))
	tr.Add(0, midi.NoteOn(1, key, 100))
	tr.Add(960, midi.NoteOff(1, key))
	tr.Close(0)
	require.NoError(t, s.Add(tr))
	require.NoError(t, s.WriteFile(path))
}

func TestLibraryFiles(t *testing.T) {
	dir := t.TempDir()
	writeMIDI(t, filepath.Join(dir, "b.mid"), 40)
	writeMIDI(t, filepath.Join(dir, "a.MIDI"), 41)
	writeMIDI(t, filepath.Join(dir, "jazz", "c.mid"), 42)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	lib := NewLibrary(dir, 1)

	files, err := lib.Files("jazz")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "jazz", "c.mid")}, files)

	files, err = lib.Files("polka")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.MIDI"), filepath.Join(dir, "b.mid")}, files)
}

func TestLibraryEmpty(t *testing.T) {
	lib := NewLibrary(t.TempDir(), 1)
	_, err := lib.Generate(context.Background(), Params{})
	require.ErrorIs(t, err, ErrEmptyLibrary)
}

func TestLibraryGenerate(t *testing.T) {
	dir := t.TempDir()
	writeMIDI(t, filepath.Join(dir, "country", "one.mid"), 45)

	lib := NewLibrary(dir, 1)
	p := Params{Tempo: 100, LoopMeasures: 2, PlayDrum: new(bool)}
	g, err := lib.Generate(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	require.Equal(t, 2, g.Len())
	assert.Equal(t, uint8(45), g.Event(0).Pitch)
	assert.Equal(t, "bass", g.Event(0).Instrument)
	assert.InDelta(t, 100, g.BPM(), 0.001)
	assert.Equal(t, uint32(2*4*960), g.LengthTicks())
	assert.False(t, g.Settings().Enabled["drum"])
	assert.True(t, g.Settings().Enabled["bass"])
}

func TestLibraryGenerateHonoursContext(t *testing.T) {
	dir := t.TempDir()
	writeMIDI(t, filepath.Join(dir, "one.mid"), 45)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLibrary(dir, 1).Generate(ctx, Params{})
	require.ErrorIs(t, err, context.Canceled)
}
