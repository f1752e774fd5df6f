// Package session provides the track store that turns source files into
// sessions.
package session

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/stembox/internal/domain/track"
	"github.com/osa030/stembox/internal/infra/audiofile"
)

// Decoder turns files into audio the store can hold.
type Decoder interface {
	// DecodeMono returns mono samples in [-1, 1] and the sample rate.
	DecodeMono(path string) ([]float32, int, error)
	// Probe returns the playing time of a file.
	Probe(path string) (time.Duration, error)
}

// FileDecoder decodes files from disk.
type FileDecoder struct{}

// DecodeMono implements Decoder.
func (FileDecoder) DecodeMono(path string) ([]float32, int, error) {
	return audiofile.DecodeMono(path)
}

// Probe implements Decoder.
func (FileDecoder) Probe(path string) (time.Duration, error) {
	return audiofile.Probe(path)
}

// Store builds sessions from files. Each load returns a new immutable
// session; the caller decides whether it replaces the one in use, so a
// failed load never disturbs it.
type Store struct {
	decoder Decoder
	workers int
}

// NewStore creates a store. workers bounds concurrent stem decodes.
func NewStore(decoder Decoder, workers int) *Store {
	if decoder == nil {
		decoder = FileDecoder{}
	}
	if workers <= 0 {
		workers = 4
	}
	return &Store{
		decoder: decoder,
		workers: workers,
	}
}

// LoadStems decodes every stem file concurrently and verifies they share one
// sample rate.
func (s *Store) LoadStems(ctx context.Context, files map[string]string) (*track.Session, error) {
	if len(files) == 0 {
		return nil, errors.Mark(errors.New("no stem files given"), track.ErrLoad)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	tracks := make([]track.Track, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, name := range names {
		i, name := i, name
		path := files[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			samples, rate, err := s.decoder.DecodeMono(path)
			if err != nil {
				return errors.Mark(errors.Wrapf(err, "failed to load stem %q", name), track.ErrLoad)
			}
			tracks[i] = track.Track{Name: name, Samples: samples, SampleRate: rate}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sess, err := track.NewStemSession(uuid.New().String(), tracks)
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("session: loaded %d stems: id=%s rate=%d duration=%v",
		len(sess.Tracks), sess.ID, sess.SampleRate, sess.Duration)
	return sess, nil
}

// LoadLocal probes a single file.
func (s *Store) LoadLocal(ctx context.Context, path string) (*track.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	duration, err := s.decoder.Probe(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to load %s", path), track.ErrLoad)
	}

	sess := track.NewLocalSession(uuid.New().String(), path, duration)
	zlog.Info().Msgf("session: loaded local file: id=%s path=%s duration=%v", sess.ID, path, duration)
	return sess, nil
}
