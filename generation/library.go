package generation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JeanRibes/groovecast/music"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Generator turns a parameter request into a groove. Model-backed agents
// live behind this interface.
type Generator interface {
	Generate(ctx context.Context, p Params) (*music.Groove, error)
}

var ErrEmptyLibrary = errors.New("no MIDI files in library")

const beatsPerBar = 4

// Library generates grooves by picking Standard MIDI Files from a directory,
// one sub-directory per style.
type Library struct {
	dir string
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLibrary(dir string, seed int64) *Library {
	return &Library{dir: dir, rnd: rand.New(rand.NewSource(seed))}
}

func isMIDI(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".mid" || ext == ".midi"
}

func list(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && isMIDI(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Files lists the files for style, or the top-level files when the style
// has none.
func (l *Library) Files(style string) ([]string, error) {
	if style != "" {
		files, err := list(filepath.Join(l.dir, style))
		if err == nil && len(files) > 0 {
			return files, nil
		}
	}
	files, err := list(l.dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s (style %q)", ErrEmptyLibrary, l.dir, style)
	}
	return files, nil
}

func (l *Library) pick(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Intn(n)
}

func (l *Library) Generate(ctx context.Context, p Params) (*music.Groove, error) {
	p.Normalize()
	files, err := l.Files(p.Style)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := files[l.pick(len(files))]
	f, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if p.Quantize {
		if f, err = music.Quantize(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	ticks, ok := f.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%s: %w: unsupported time format", path, music.ErrMalformedGroove)
	}
	length := uint32(p.LoopMeasures*beatsPerBar) * uint32(ticks.Resolution())
	return music.FromSMF(f,
		music.WithTempo(music.TempoMicros(float64(p.Tempo))),
		music.WithLength(length),
		music.WithSettings(p.Settings()),
	)
}
