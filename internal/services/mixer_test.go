package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/vibecast/internal/models"
	"github.com/bobarin/vibecast/internal/testsupport"
)

func TestBuildPlaylistAlternates(t *testing.T) {
	for n := 1; n <= 6; n++ {
		tracks := make([]string, n)
		for i := range tracks {
			tracks[i] = filepath.Join("ws", "repaired_"+string(rune('a'+i))+".wav")
		}

		entries := BuildPlaylist(tracks, "silence.wav")
		if len(entries) != 2*n-1 {
			t.Fatalf("n=%d: got %d entries, want %d", n, len(entries), 2*n-1)
		}
		for i, entry := range entries {
			if i%2 == 0 {
				if entry.Kind != EntryTrack || entry.Path != tracks[i/2] {
					t.Fatalf("n=%d: entry %d = %+v, want track %s", n, i, entry, tracks[i/2])
				}
			} else if entry.Kind != EntrySilence {
				t.Fatalf("n=%d: entry %d = %+v, want silence", n, i, entry)
			}
		}
	}
}

func TestBuildPlaylistEmpty(t *testing.T) {
	if got := BuildPlaylist(nil, "silence.wav"); len(got) != 0 {
		t.Fatalf("expected empty playlist, got %v", got)
	}
}

func TestWriteConcatListEscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "concat.txt")
	track := filepath.Join(dir, "it's.wav")

	if err := WriteConcatList(list, BuildPlaylist([]string{track}, "")); err != nil {
		t.Fatalf("WriteConcatList: %v", err)
	}
	data, err := os.ReadFile(list)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `it'\''s.wav`) {
		t.Fatalf("quote not escaped:\n%s", data)
	}
}

func prepareTracks(t *testing.T, dir string, n int) []models.MediaAsset {
	t.Helper()
	tracks := make([]models.MediaAsset, n)
	for i := range tracks {
		path := filepath.Join(dir, "repaired_0"+string(rune('1'+i))+".wav")
		testsupport.WriteFile(t, path, 16*1024)
		tracks[i] = models.MediaAsset{Path: path, Role: models.AssetRoleRepairedAudio, Size: 16 * 1024}
	}
	return tracks
}

func TestConcatenateAndNormalizeLoudnorm(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewFakeRunner()
	mixer := NewMixer(newTestFFmpeg(runner), DefaultPolicy())

	asset, err := mixer.ConcatenateAndNormalize(context.Background(), dir, prepareTracks(t, dir, 3))
	if err != nil {
		t.Fatalf("ConcatenateAndNormalize: %v", err)
	}
	if asset.Path != filepath.Join(dir, NormalizedFileName) || asset.Role != models.AssetRoleNormalizedAudio {
		t.Fatalf("unexpected asset %+v", asset)
	}

	if got := runner.Count("anullsrc"); got != 1 {
		t.Fatalf("silence generated %d times, want 1", got)
	}
	if got := runner.Count("loudnorm="); got != 2 {
		t.Fatalf("expected two loudnorm passes, got %d", got)
	}
	if runner.Count("measured_I=-23.54") != 1 {
		t.Fatal("second pass did not use the measured values")
	}
	if runner.Count("dynaudnorm") != 0 || runner.Count("volume=") != 0 {
		t.Fatal("fallback tiers ran after loudnorm succeeded")
	}

	list, err := os.ReadFile(filepath.Join(dir, "concat.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(list), "silence.wav"); got != 2 {
		t.Fatalf("concat list has %d silences, want 2:\n%s", got, list)
	}
}

func TestNormalizeFallsBackToDynaudnorm(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(c testsupport.Call) bool { return c.Contains("measured_I") }
	mixer := NewMixer(newTestFFmpeg(runner), DefaultPolicy())

	if _, err := mixer.ConcatenateAndNormalize(context.Background(), dir, prepareTracks(t, dir, 2)); err != nil {
		t.Fatalf("ConcatenateAndNormalize: %v", err)
	}
	if runner.Count("dynaudnorm=f=150:g=15") != 1 {
		t.Fatal("expected dynaudnorm tier to run")
	}
	if runner.Count("volume=") != 0 {
		t.Fatal("flat gain tier should not run")
	}
}

func TestNormalizeUnparseableAnalysisFallsBack(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewFakeRunner()
	runner.LoudnormJSON = "no measurement here"
	mixer := NewMixer(newTestFFmpeg(runner), DefaultPolicy())

	merged := filepath.Join(dir, "merged.wav")
	testsupport.WriteFile(t, merged, 32*1024)

	_, tier, err := mixer.Normalize(context.Background(), merged, filepath.Join(dir, NormalizedFileName))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if tier != TierDynaudnorm {
		t.Fatalf("tier = %q, want %q", tier, TierDynaudnorm)
	}
}

func TestNormalizeAllTiersFail(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(c testsupport.Call) bool {
		return c.Contains(NormalizedFileName) || c.Contains("print_format=json")
	}
	mixer := NewMixer(newTestFFmpeg(runner), DefaultPolicy())

	_, err := mixer.ConcatenateAndNormalize(context.Background(), dir, prepareTracks(t, dir, 2))
	if !errors.Is(err, ErrNormalize) {
		t.Fatalf("expected ErrNormalize, got %v", err)
	}
	if Label(err) != "Audio normalization failed" {
		t.Fatalf("unexpected label %q", Label(err))
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || len(exhausted.Attempts) != 3 {
		t.Fatalf("expected three failed attempts, got %v", err)
	}
	names := []string{exhausted.Attempts[0].Name, exhausted.Attempts[1].Name, exhausted.Attempts[2].Name}
	want := []string{TierLoudnorm, TierDynaudnorm, TierFlatGain}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("attempt order = %v, want %v", names, want)
		}
	}
}

func TestConcatenateFailureIsMergeError(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(c testsupport.Call) bool { return c.Contains("concat.txt") }
	mixer := NewMixer(newTestFFmpeg(runner), DefaultPolicy())

	_, err := mixer.ConcatenateAndNormalize(context.Background(), dir, prepareTracks(t, dir, 2))
	if !errors.Is(err, ErrMerge) {
		t.Fatalf("expected ErrMerge, got %v", err)
	}
	if runner.Count("loudnorm") != 0 {
		t.Fatal("normalization must not run after a merge failure")
	}
}

func TestConcatenateUndersizedOutput(t *testing.T) {
	dir := t.TempDir()
	runner := testsupport.NewFakeRunner()
	runner.SizeFor = func(c testsupport.Call) int64 {
		if strings.HasSuffix(c.Output(), "merged.wav") {
			return 100
		}
		return -1
	}
	mixer := NewMixer(newTestFFmpeg(runner), DefaultPolicy())

	_, err := mixer.ConcatenateAndNormalize(context.Background(), dir, prepareTracks(t, dir, 2))
	if !errors.Is(err, ErrMerge) {
		t.Fatalf("expected ErrMerge, got %v", err)
	}
}

func TestParseLoudnormJSON(t *testing.T) {
	m, err := ParseLoudnormJSON("noise before\n" + testsupport.DefaultLoudnormJSON)
	if err != nil {
		t.Fatalf("ParseLoudnormJSON: %v", err)
	}
	if m.InputI != "-23.54" || m.TargetOffset != "0.02" {
		t.Fatalf("unexpected measurement %+v", m)
	}

	silent := strings.Replace(testsupport.DefaultLoudnormJSON, `"-23.54"`, `"-inf"`, 1)
	if _, err := ParseLoudnormJSON(silent); err == nil {
		t.Fatal("expected -inf to be rejected")
	}

	if _, err := ParseLoudnormJSON("size=N/A time=00:00:10.00"); err == nil {
		t.Fatal("expected error when no JSON block is present")
	}
}

func TestNormalizeRepeatableFilter(t *testing.T) {
	applied := func() string {
		t.Helper()
		dir := t.TempDir()
		runner := testsupport.NewFakeRunner()
		mixer := NewMixer(newTestFFmpeg(runner), DefaultPolicy())
		if _, err := mixer.ConcatenateAndNormalize(context.Background(), dir, prepareTracks(t, dir, 2)); err != nil {
			t.Fatalf("ConcatenateAndNormalize: %v", err)
		}
		for _, call := range runner.Calls() {
			for i, arg := range call.Args {
				if arg == "-af" && i+1 < len(call.Args) && strings.Contains(call.Args[i+1], "measured_I") {
					return call.Args[i+1]
				}
			}
		}
		t.Fatal("no loudnorm apply pass recorded")
		return ""
	}

	first, second := applied(), applied()
	if first != second {
		t.Fatalf("filter differs between runs:\n%s\n%s", first, second)
	}
	if !strings.HasPrefix(first, "loudnorm=I=-16:TP=-1.5:LRA=11:") {
		t.Fatalf("unexpected loudness target: %s", first)
	}
}
