package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies a prepared file for the gateway payload
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// ErrPersist marks a failed durable copy. The send itself can still proceed
// with the in-memory payload, so callers log this instead of failing.
var ErrPersist = errors.New("media: failed to persist public copy")

type Preparer struct {
	FFmpegBin  string
	MediaDir   string
	PublicBase string
	TmpDir     string
}

func NewPreparer(ffmpegBin, mediaDir, publicBase string) *Preparer {
	return &Preparer{
		FFmpegBin:  ffmpegBin,
		MediaDir:   mediaDir,
		PublicBase: publicBase,
		TmpDir:     os.TempDir(),
	}
}

// audioExt maps a source mime to a container extension ffmpeg can probe
func audioExt(mime string) string {
	switch {
	case strings.Contains(mime, "webm"):
		return ".webm"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "m4a"):
		return ".mp4"
	case strings.Contains(mime, "ogg"), strings.Contains(mime, "opus"):
		return ".ogg"
	default:
		return ".wav"
	}
}

// PrepareAudio transcodes raw audio into mp3 and returns it base64-encoded
// for the outbound payload, plus a public URL of a durable copy for later
// playback. Temporary input and output files are removed on every exit path.
func (p *Preparer) PrepareAudio(ctx context.Context, raw []byte, sourceMime string) (string, string, error) {
	if len(raw) == 0 {
		return "", "", fmt.Errorf("empty audio payload")
	}

	id := uuid.NewString()
	inputPath := filepath.Join(p.TmpDir, id+audioExt(sourceMime))
	outputPath := filepath.Join(p.TmpDir, id+".mp3")
	defer func() {
		os.Remove(inputPath)
		os.Remove(outputPath)
	}()

	if err := os.WriteFile(inputPath, raw, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write transcode input: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.FFmpegBin, "-y", "-i", inputPath, "-acodec", "libmp3lame", outputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", "", fmt.Errorf("transcode to mp3 failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	mp3Bytes, err := os.ReadFile(outputPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read transcode output: %w", err)
	}
	if len(mp3Bytes) == 0 {
		return "", "", fmt.Errorf("transcode produced empty output")
	}

	mp3Base64 := base64.StdEncoding.EncodeToString(mp3Bytes)

	// Durable copy for playback in chat views
	publicName := id + ".mp3"
	if err := p.persist("audio", publicName, mp3Bytes); err != nil {
		return mp3Base64, "", fmt.Errorf("%w: %v", ErrPersist, err)
	}

	return mp3Base64, p.publicURL("audio", publicName), nil
}

// PrepareFile classifies an attachment by mime and persists it under a
// kind-specific public subdirectory with a collision-resistant filename.
func (p *Preparer) PrepareFile(raw []byte, mime, filename string) (string, Kind, error) {
	kind := classify(mime)

	name := uuid.NewString()
	if s := sanitize(filename); s != "" {
		name += "-" + s
	}

	if err := p.persist(string(kind), name, raw); err != nil {
		return "", kind, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	return p.publicURL(string(kind), name), kind, nil
}

func classify(mime string) Kind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	default:
		return KindDocument
	}
}

// sanitize strips path separators and characters that would break a URL
func sanitize(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}

func (p *Preparer) persist(subdir, name string, data []byte) error {
	dir := filepath.Join(p.MediaDir, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0644)
}

func (p *Preparer) publicURL(subdir, name string) string {
	return strings.TrimRight(p.PublicBase, "/") + "/" + subdir + "/" + name
}
