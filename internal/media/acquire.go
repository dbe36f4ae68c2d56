package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const normalizedName = "audio.wav"

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64 // -1 if unknown
	Body     io.Reader
}

// Acquirer turns a URL or an upload into a normalized WAV inside a workspace.
type Acquirer struct {
	YtDlp  *YtDlp
	FFmpeg *FFmpeg
	Policy UploadPolicy
}

// FromURL downloads url and normalizes it. Returns the WAV path.
func (a *Acquirer) FromURL(ctx context.Context, url string, ws *Workspace) (string, error) {
	mp3, err := a.YtDlp.Download(ctx, url, ws.Dir())
	if err != nil {
		return "", err
	}
	dst := ws.Path(normalizedName)
	if err := a.FFmpeg.Normalize(ctx, mp3, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// FromUpload checks the upload against the policy, saves it and normalizes
// it. Returns the WAV path.
func (a *Acquirer) FromUpload(ctx context.Context, up Upload, ws *Workspace) (string, error) {
	if err := a.Policy.Check(up.Filename, up.Size); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	src := ws.Path("source" + ext)
	n, err := a.save(up.Body, src)
	if err != nil {
		return "", err
	}
	// re-check with the real byte count when the client did not send one
	if err := a.Policy.Check(up.Filename, n); err != nil {
		return "", err
	}

	dst := ws.Path(normalizedName)
	if err := a.FFmpeg.Normalize(ctx, src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (a *Acquirer) save(r io.Reader, path string) (int64, error) {
	if r == nil {
		return 0, ErrMissingFile
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("save upload: %w", err)
	}
	defer f.Close()

	if a.Policy.MaxBytes > 0 {
		r = io.LimitReader(r, a.Policy.MaxBytes+1)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("save upload: %w", err)
	}
	return n, nil
}
