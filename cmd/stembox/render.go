package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/stembox/internal/app/mixer"
	"github.com/osa030/stembox/internal/app/session"
	"github.com/osa030/stembox/internal/infra/audiofile"
	"github.com/osa030/stembox/internal/infra/config"
)

// collectStems merges the WAV files of dir with the stem arguments.
// Arguments are name=path, or a path whose base name becomes the stem name.
func collectStems(dir string, args []string) (map[string]string, error) {
	files := make(map[string]string)
	add := func(name, path string) error {
		if name == "" || path == "" {
			return errors.Newf("invalid stem %q", name+"="+path)
		}
		if prev, ok := files[name]; ok {
			return errors.Newf("stem %q given twice: %s and %s", name, prev, path)
		}
		files[name] = path
		return nil
	}

	if dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", dir)
		}
		sort.Strings(matches)
		for _, path := range matches {
			if err := add(stemName(path), path); err != nil {
				return nil, err
			}
		}
	}

	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok {
			name, path = stemName(arg), arg
		}
		if err := add(name, path); err != nil {
			return nil, err
		}
	}

	if len(files) == 0 {
		return nil, errors.New("no stems given")
	}
	return files, nil
}

func stemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type renderRequest struct {
	Files map[string]string // Stem name to WAV path
	Mute  []string          // Stems left out
	Gains map[string]string // Stem name to gain in [0, 1]
	Name  string            // File name inside the output directory
}

// renderToFile mixes the stems with the requested settings and writes the
// result into the output directory. It returns the written path.
func renderToFile(ctx context.Context, cfg *config.Config, req renderRequest) (string, error) {
	store := session.NewStore(nil, cfg.Player.DecodeWorkers)
	sess, err := store.LoadStems(ctx, req.Files)
	if err != nil {
		return "", err
	}

	params := mixer.NewParams()
	params.Reset(sess.TrackNames(), cfg.Player.Gain())
	for _, name := range req.Mute {
		if err := params.SetEnabled(name, false); err != nil {
			return "", err
		}
	}
	for name, value := range req.Gains {
		gain, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", errors.Wrapf(err, "invalid gain for %q", name)
		}
		if err := params.SetGain(name, gain); err != nil {
			return "", err
		}
	}

	buf, err := mixer.Render(sess.Tracks, params.Snapshot())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", cfg.Output.Dir)
	}
	path := filepath.Join(cfg.Output.Dir, filepath.Base(req.Name))
	if err := audiofile.WritePCM16(path, buf.Samples, buf.SampleRate, buf.Channels); err != nil {
		return "", err
	}

	zlog.Info().Msgf("rendered %d stems to %s: duration=%v", len(sess.Tracks), path, buf.Duration())
	return path, nil
}
