package playback

import (
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/osa030/stembox/internal/app/mixer"
	"github.com/osa030/stembox/internal/domain/track"
	"github.com/osa030/stembox/internal/infra/audiofile"
)

const artifactPattern = "stembox-mix-*.wav"

// renderArtifact mixes the session tracks and writes the result to a new
// temporary WAV file in dir.
func renderArtifact(dir string, sess *track.Session, snap mixer.Snapshot) (string, error) {
	buf, err := mixer.Render(sess.Tracks, snap)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, artifactPattern)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "failed to create artifact"), ErrRender)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Mark(errors.Wrap(err, "failed to create artifact"), ErrRender)
	}

	if err := audiofile.WritePCM16(path, buf.Samples, buf.SampleRate, buf.Channels); err != nil {
		_ = os.Remove(path)
		return "", errors.Mark(errors.Wrapf(err, "failed to write artifact %s", path), ErrRender)
	}
	return path, nil
}

// removeArtifact deletes path. A missing file is not an error and other
// failures are only logged.
func removeArtifact(path string, logger zerolog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Msgf("failed to delete artifact %s", path)
		return
	}
	logger.Debug().Msgf("deleted artifact %s", path)
}
