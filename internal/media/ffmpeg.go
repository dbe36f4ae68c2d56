package media

import (
	"context"
	"fmt"
	"os"
)

// FFmpeg converts any input ffmpeg understands into 16 kHz mono PCM WAV.
type FFmpeg struct {
	Path string // binary, default "ffmpeg"
	Run  Runner // default ExecRunner
}

func normalizeArgs(src, dst string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dst,
	}
}

// Normalize writes src as a 16 kHz mono WAV to dst.
func (f *FFmpeg) Normalize(ctx context.Context, src, dst string) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	run := f.Run
	if run == nil {
		run = ExecRunner
	}
	if _, err := run(ctx, bin, normalizeArgs(src, dst)...); err != nil {
		return fmt.Errorf("ffmpeg normalize: %w", err)
	}
	if fi, err := os.Stat(dst); err != nil || fi.Size() == 0 {
		return fmt.Errorf("ffmpeg normalize: no output written: %w", ErrAudioNotFound)
	}
	return nil
}
