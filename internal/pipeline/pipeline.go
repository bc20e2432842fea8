// Package pipeline runs the ingestion of a frame: header rewrite, upload and archive registration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/laav10/astro-ingester/internal/checksum"
	"github.com/laav10/astro-ingester/internal/metadata"
)

var (
	// ErrFileNotFound is returned when the frame to ingest does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrMetadataParse is returned when the metadata cannot be read or merged.
	ErrMetadataParse = errors.New("metadata could not be parsed")
	// ErrHeaderRewrite is returned when the frame header cannot be replaced.
	ErrHeaderRewrite = errors.New("header rewrite failed")
	// ErrObjectStore is returned when the frame cannot be uploaded.
	ErrObjectStore = errors.New("object store upload failed")
	// ErrArchiveRegistration is returned when the frame cannot be registered with the archive.
	ErrArchiveRegistration = errors.New("archive registration failed")
)

// HeaderRewriter replaces the header of a frame.
type HeaderRewriter interface {
	Rewrite(path string, fs metadata.FieldSet) error
}

// Uploader stores a frame and returns its object key.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Registrar registers a frame payload with the archive.
type Registrar interface {
	Register(ctx context.Context, p metadata.Payload) error
}

// Observer is notified of every step of a run, in order.
type Observer interface {
	StepStarted(step Step)
	StepFinished(result StepResult)
}

// Job is a frame to ingest.
type Job struct {
	// Path is the frame file.
	Path string
	// MetadataPath is the metadata file. The built-in sample metadata is used when empty.
	MetadataPath string
}

// StepResult is the result of one step of a run.
type StepResult struct {
	Step     Step
	Err      error
	Duration time.Duration
}

// Outcome is the result of a run.
type Outcome struct {
	State State
	// Steps holds every executed step, in order.
	Steps []StepResult
	// Payload is the registered payload, if the run got far enough to build it.
	Payload *metadata.Payload
	// Err is the error of the failed step, wrapping one of the package errors.
	Err error
}

// Succeeded reports whether the frame has been registered.
func (o Outcome) Succeeded() bool {
	return o.State == Registered
}

// Pipeline ingests frames one at a time.
type Pipeline struct {
	rewriter  HeaderRewriter
	uploader  Uploader
	registrar Registrar

	observers []Observer
	footprint metadata.Footprint
	checksum  func(path string) (string, error)
	log       *slog.Logger
}

type options struct {
	observers []Observer
	footprint metadata.Footprint
	checksum  func(path string) (string, error)
	log       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*options)

// WithObserver adds an observer of the runs. It can be used several times.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observers = append(opts.observers, o)
	}
}

// WithFootprint sets the sky area registered for every frame.
func WithFootprint(f metadata.Footprint) Option {
	return func(opts *options) {
		opts.footprint = f
	}
}

// WithLogger sets the logger of the Pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(opts *options) {
		opts.log = l
	}
}

// New returns a Pipeline running its steps against the given collaborators.
func New(rewriter HeaderRewriter, uploader Uploader, registrar Registrar, args ...Option) Pipeline {
	opts := options{
		footprint: metadata.DefaultFootprint(),
		checksum:  checksum.File,
		log:       slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	return Pipeline{
		rewriter:  rewriter,
		uploader:  uploader,
		registrar: registrar,

		observers: opts.observers,
		footprint: opts.footprint,
		checksum:  opts.checksum,
		log:       opts.log,
	}
}

// Run ingests the frame of job.
// The first failing step ends the run in the Failed state. Completed steps are not undone.
func (p Pipeline) Run(ctx context.Context, job Job) Outcome {
	out := Outcome{State: Start}
	log := p.log.With("file", job.Path)
	log.Info("Starting ingestion")

	var obs metadata.Observation
	var fs metadata.FieldSet
	if !p.step(&out, StepPrepare, func() (err error) {
		obs, fs, err = prepare(job)
		return err
	}) {
		return p.fail(log, out)
	}

	if !p.step(&out, StepRewriteHeader, func() error {
		if err := p.rewriter.Rewrite(job.Path, fs); err != nil {
			return errors.Join(ErrHeaderRewrite, err)
		}
		return nil
	}) {
		return p.fail(log, out)
	}
	out.State = HeaderUpdated

	var key string
	if !p.step(&out, StepUpload, func() (err error) {
		if key, err = p.uploader.Upload(ctx, job.Path); err != nil {
			return errors.Join(ErrObjectStore, err)
		}
		return nil
	}) {
		return p.fail(log, out)
	}
	out.State = Uploaded
	log.Debug("Frame uploaded", "key", key)

	if !p.step(&out, StepRegister, func() error {
		sum, err := p.checksum(job.Path)
		if err != nil {
			return errors.Join(ErrArchiveRegistration, err)
		}
		payload := metadata.NewPayload(job.Path, obs, fs, sum, p.footprint)
		out.Payload = &payload
		if err := p.registrar.Register(ctx, payload); err != nil {
			return errors.Join(ErrArchiveRegistration, err)
		}
		return nil
	}) {
		return p.fail(log, out)
	}
	out.State = Registered

	log.Info("Ingestion complete")
	return out
}

// step runs f as the given step, records its result and reports whether it succeeded.
func (p Pipeline) step(out *Outcome, step Step, f func() error) bool {
	for _, o := range p.observers {
		o.StepStarted(step)
	}

	start := time.Now()
	err := f()
	res := StepResult{Step: step, Err: err, Duration: time.Since(start)}
	out.Steps = append(out.Steps, res)

	for _, o := range p.observers {
		o.StepFinished(res)
	}

	if err != nil {
		out.Err = err
		return false
	}
	return true
}

func (p Pipeline) fail(log *slog.Logger, out Outcome) Outcome {
	log.Warn("Ingestion failed", "state", out.State, "error", out.Err)
	out.State = Failed
	return out
}

// prepare checks the frame exists, then loads and merges its metadata.
func prepare(job Job) (metadata.Observation, metadata.FieldSet, error) {
	if _, err := os.Stat(job.Path); err != nil {
		return nil, metadata.FieldSet{}, errors.Join(ErrFileNotFound, err)
	}

	obs, hdr := metadata.Sample()
	if job.MetadataPath != "" {
		var err error
		if obs, hdr, err = metadata.LoadFile(job.MetadataPath); err != nil {
			return nil, metadata.FieldSet{}, errors.Join(ErrMetadataParse, err)
		}
	}

	fs, err := metadata.Merge(obs, hdr)
	if err != nil {
		return nil, metadata.FieldSet{}, errors.Join(ErrMetadataParse, fmt.Errorf("could not merge metadata: %w", err))
	}
	return obs, fs, nil
}
