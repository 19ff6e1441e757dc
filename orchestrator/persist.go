package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"syscall"

	"gopkg.in/yaml.v3"
)

const videoName = "pawdcast.mp4"

var jobIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidJobID reports whether id can name a job directory.
func ValidJobID(id string) bool { return jobIDRe.MatchString(id) }

// mkJobDir creates <outputsRoot>/<job>. The directory must not exist yet, so
// two runs never share one.
func mkJobDir(outputsRoot, job string) (string, error) {
	if !ValidJobID(job) {
		return "", fmt.Errorf("%w: %q", ErrInvalidJob, job)
	}
	root, err := filepath.Abs(outputsRoot)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, job)
	if rel, err := filepath.Rel(root, dir); err != nil || rel != job {
		return "", fmt.Errorf("%w: %q escapes outputs", ErrInvalidJob, job)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrJobExists, job)
		}
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// persist moves the finished video into place and records the job manifest
// (manifest.yaml) and per-segment timing (segments.json) in dir.
// Segment audio lives in the scratch directory and is not kept.
func persist(res *Result, dir, video, output string) error {
	if output == "" {
		output = filepath.Join(dir, videoName)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	if err := moveFile(video, output); err != nil {
		return err
	}
	res.Video, res.Dir = output, dir

	segs := make([]Segment, len(res.Segments))
	for i, s := range res.Segments {
		s.Audio = filepath.Base(s.Audio)
		segs[i] = s
	}
	if err := writeJSON(filepath.Join(dir, "segments.json"), segs); err != nil {
		return err
	}

	bundle := *res
	bundle.Segments = nil // kept in segments.json only
	return writeYAML(filepath.Join(dir, "manifest.yaml"), bundle)
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
