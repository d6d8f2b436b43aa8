package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubTranscoder writes a fake transcoder that copies its input file to the
// output path, standing in for ffmpeg.
func stubTranscoder(t *testing.T, dir string) string {
	t.Helper()
	script := `#!/bin/sh
# args: -y -i <input> -acodec libmp3lame <output>
in=""
out=""
prev=""
for a in "$@"; do
	if [ "$prev" = "-i" ]; then in="$a"; fi
	prev="$a"
	out="$a"
done
cp "$in" "$out"
`
	path := filepath.Join(dir, "fake-ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write stub transcoder: %v", err)
	}
	return path
}

func failingTranscoder(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "failing-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho 'boom' >&2\nexit 1\n"), 0755); err != nil {
		t.Fatalf("failed to write stub transcoder: %v", err)
	}
	return path
}

func newTestPreparer(t *testing.T, ffmpeg string) (*Preparer, string) {
	t.Helper()
	tmp := t.TempDir()
	mediaDir := filepath.Join(t.TempDir(), "media")
	p := &Preparer{
		FFmpegBin:  ffmpeg,
		MediaDir:   mediaDir,
		PublicBase: "/media",
		TmpDir:     tmp,
	}
	return p, tmp
}

func assertNoTempFiles(t *testing.T, tmpDir string) {
	t.Helper()
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("failed to read tmp dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "ffmpeg") {
			continue
		}
		t.Errorf("temp file left behind: %s", e.Name())
	}
}

func TestPrepareAudioSuccess(t *testing.T) {
	tools := t.TempDir()
	p, tmp := newTestPreparer(t, stubTranscoder(t, tools))

	raw := []byte("fake-audio-bytes")
	for _, mime := range []string{"audio/webm", "audio/mp4", "audio/ogg; codecs=opus", "audio/wav"} {
		mp3b64, publicURL, err := p.PrepareAudio(context.Background(), raw, mime)
		if err != nil {
			t.Fatalf("mime %s: unexpected error: %v", mime, err)
		}

		decoded, err := base64.StdEncoding.DecodeString(mp3b64)
		if err != nil {
			t.Fatalf("mime %s: output is not valid base64: %v", mime, err)
		}
		if string(decoded) != string(raw) {
			t.Errorf("mime %s: transcoded bytes do not round-trip through the stub", mime)
		}

		if !strings.HasPrefix(publicURL, "/media/audio/") || !strings.HasSuffix(publicURL, ".mp3") {
			t.Errorf("mime %s: unexpected public URL %q", mime, publicURL)
		}

		// Durable copy exists on disk
		stored := filepath.Join(p.MediaDir, "audio", filepath.Base(publicURL))
		if _, err := os.Stat(stored); err != nil {
			t.Errorf("mime %s: durable copy missing: %v", mime, err)
		}
	}

	assertNoTempFiles(t, tmp)
}

func TestPrepareAudioTranscoderFailureCleansUp(t *testing.T) {
	tools := t.TempDir()
	p, tmp := newTestPreparer(t, failingTranscoder(t, tools))

	_, _, err := p.PrepareAudio(context.Background(), []byte("x"), "audio/webm")
	if err == nil {
		t.Fatal("expected transcode error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected transcoder stderr in error, got %v", err)
	}

	assertNoTempFiles(t, tmp)
}

func TestPrepareAudioEmptyPayload(t *testing.T) {
	tools := t.TempDir()
	p, _ := newTestPreparer(t, stubTranscoder(t, tools))
	if _, _, err := p.PrepareAudio(context.Background(), nil, "audio/webm"); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestPrepareFileKinds(t *testing.T) {
	tools := t.TempDir()
	p, _ := newTestPreparer(t, stubTranscoder(t, tools))

	cases := []struct {
		mime string
		want Kind
	}{
		{"image/png", KindImage},
		{"video/mp4", KindVideo},
		{"application/pdf", KindDocument},
		{"text/plain", KindDocument},
	}

	for _, tc := range cases {
		url, kind, err := p.PrepareFile([]byte("data"), tc.mime, "report final.pdf")
		if err != nil {
			t.Fatalf("mime %s: unexpected error: %v", tc.mime, err)
		}
		if kind != tc.want {
			t.Errorf("mime %s: expected kind %s, got %s", tc.mime, tc.want, kind)
		}
		if !strings.Contains(url, "/"+string(tc.want)+"/") {
			t.Errorf("mime %s: URL %q not under kind subdirectory", tc.mime, url)
		}
		if strings.Contains(url, " ") {
			t.Errorf("mime %s: URL %q contains unsanitized characters", tc.mime, url)
		}
	}
}

func TestPrepareFileUniqueNames(t *testing.T) {
	tools := t.TempDir()
	p, _ := newTestPreparer(t, stubTranscoder(t, tools))

	url1, _, err := p.PrepareFile([]byte("a"), "image/png", "pic.png")
	if err != nil {
		t.Fatal(err)
	}
	url2, _, err := p.PrepareFile([]byte("b"), "image/png", "pic.png")
	if err != nil {
		t.Fatal(err)
	}
	if url1 == url2 {
		t.Fatalf("expected unique filenames, both were %q", url1)
	}
}

func TestPrepareFilePersistFailureIsWarning(t *testing.T) {
	tools := t.TempDir()
	p, _ := newTestPreparer(t, stubTranscoder(t, tools))
	// Point the media dir at a regular file so MkdirAll fails
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	p.MediaDir = blocker

	_, kind, err := p.PrepareFile([]byte("data"), "image/png", "pic.png")
	if err == nil {
		t.Fatal("expected persist error")
	}
	if !errors.Is(err, ErrPersist) {
		t.Errorf("expected ErrPersist, got %v", err)
	}
	if kind != KindImage {
		t.Errorf("kind should still be classified, got %s", kind)
	}
}
