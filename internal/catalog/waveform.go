package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/wav"
)

// WaveformBars is the number of amplitude buckets a waveform is
// downsampled to, matching what the visualizer renders.
const WaveformBars = 200

// WaveformCache downsamples takes into normalized RMS amplitude
// buckets for visualization. Generation reads the whole WAV, so
// results are cached as JSON files keyed by song id.
type WaveformCache struct {
	dir string
}

func NewWaveformCache(dir string) *WaveformCache {
	return &WaveformCache{dir: dir}
}

// ForSong returns the song's waveform, generating and caching it on
// first request.
func (w *WaveformCache) ForSong(song Song) ([]float64, error) {
	if cached, err := w.readCached(song.ID); err == nil {
		return cached, nil
	}

	peaks, err := generatePeaks(song.FullPath)
	if err != nil {
		return nil, fmt.Errorf("waveform generation for %s failed: %w", song.Filename, err)
	}

	w.writeCached(song.ID, peaks)
	return peaks, nil
}

// Invalidate drops the cached waveform for a song.
func (w *WaveformCache) Invalidate(songID int64) {
	os.Remove(w.cachePath(songID))
}

func (w *WaveformCache) cachePath(songID int64) string {
	return filepath.Join(w.dir, fmt.Sprintf("%d.json", songID))
}

func (w *WaveformCache) readCached(songID int64) ([]float64, error) {
	data, err := os.ReadFile(w.cachePath(songID))
	if err != nil {
		return nil, err
	}

	var peaks []float64
	if err := json.Unmarshal(data, &peaks); err != nil {
		// Corrupt cache entry; regenerate.
		return nil, err
	}
	return peaks, nil
}

func (w *WaveformCache) writeCached(songID int64, peaks []float64) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return
	}

	data, err := json.Marshal(peaks)
	if err != nil {
		return
	}
	// Cache write failures only cost a regeneration next time.
	os.WriteFile(w.cachePath(songID), data, 0o644)
}

func generatePeaks(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	samples := monoMix(buf.Data, buf.Format.NumChannels)
	if len(samples) == 0 {
		return make([]float64, WaveformBars), nil
	}

	chunkSize := (len(samples) + WaveformBars - 1) / WaveformBars
	peaks := make([]float64, 0, WaveformBars)
	for i := 0; i < len(samples); i += chunkSize {
		end := i + chunkSize
		if end > len(samples) {
			end = len(samples)
		}

		// RMS per bucket represents perceived loudness better than the
		// raw peak.
		var sumSquares float64
		for _, s := range samples[i:end] {
			sumSquares += s * s
		}
		peaks = append(peaks, math.Sqrt(sumSquares/float64(end-i)))
	}

	if max := maxPeak(peaks); max > 0 {
		for i := range peaks {
			peaks[i] /= max
		}
	}

	// Rounding can leave us a bucket short or long.
	if len(peaks) > WaveformBars {
		peaks = peaks[:WaveformBars]
	}
	for len(peaks) < WaveformBars {
		peaks = append(peaks, 0)
	}
	return peaks, nil
}

func monoMix(data []int, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}

	frames := len(data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		samples[i] = sum / float64(channels)
	}
	return samples
}

func maxPeak(peaks []float64) float64 {
	max := 0.0
	for _, p := range peaks {
		if p > max {
			max = p
		}
	}
	return max
}
