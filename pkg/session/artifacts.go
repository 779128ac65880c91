package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sipeed/picocast/pkg/audio"
)

// Artifacts are the files written for one session.
type Artifacts struct {
	AudioPath      string `json:"audio_path"`
	TranscriptPath string `json:"transcript_path"`
}

// WriteArtifacts stores <dir>/<id>.wav and <dir>/<id>.txt. Each file is
// written to a temp file and renamed into place.
func WriteArtifacts(dir, id string, master *audio.Master, lines []audio.Line) (Artifacts, error) {
	if !filepath.IsLocal(id) || filepath.Base(id) != id {
		return Artifacts{}, fmt.Errorf("invalid session id %q", id)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create output dir: %w", err)
	}

	art := Artifacts{
		AudioPath:      filepath.Join(dir, id+".wav"),
		TranscriptPath: filepath.Join(dir, id+".txt"),
	}

	var wav bytes.Buffer
	if err := audio.EncodeWAV(&wav, master); err != nil {
		return Artifacts{}, fmt.Errorf("encode audio: %w", err)
	}
	if err := writeFileAtomic(art.AudioPath, wav.Bytes()); err != nil {
		return Artifacts{}, fmt.Errorf("write audio: %w", err)
	}
	if err := writeFileAtomic(art.TranscriptPath, []byte(audio.FormatTranscript(lines))); err != nil {
		return Artifacts{}, fmt.Errorf("write transcript: %w", err)
	}
	return art, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
