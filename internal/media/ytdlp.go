package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrAudioNotFound is returned when a download reports success but the
// expected audio file is not on disk.
var ErrAudioNotFound = errors.New("audio not found after download")

// YtDlp downloads the best audio track of a remote video as MP3.
type YtDlp struct {
	Path string // binary, default "yt-dlp"
	Run  Runner // default ExecRunner
}

func (y *YtDlp) bin() string {
	if y.Path == "" {
		return "yt-dlp"
	}
	return y.Path
}

func (y *YtDlp) runner() Runner {
	if y.Run == nil {
		return ExecRunner
	}
	return y.Run
}

// downloadArgs builds the yt-dlp command line. Output lands in dir as
// <id>.mp3; the id is printed once post-processing is finished.
func downloadArgs(url, dir string) []string {
	return []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--no-progress",
		"--output", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print", "after_move:id",
		url,
	}
}

// Download fetches url into dir and returns the path of the MP3.
func (y *YtDlp) Download(ctx context.Context, url, dir string) (string, error) {
	out, err := y.runner()(ctx, y.bin(), downloadArgs(url, dir)...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp download: %w", err)
	}

	id := lastLine(string(out))
	if id == "" || id != filepath.Base(id) {
		return "", fmt.Errorf("yt-dlp download: unexpected output %q: %w", strings.TrimSpace(string(out)), ErrAudioNotFound)
	}

	path := filepath.Join(dir, id+".mp3")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrAudioNotFound)
	}
	return path, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
