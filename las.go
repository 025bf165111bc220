// Package las ties the listener, the attention speller and the character
// set into a Listen, Attend and Spell recognizer.
package las

import (
	"bytes"
	"encoding/gob"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/ieee0824/las-go/decoder"
	"github.com/ieee0824/las-go/encoder"
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/lexicon"
	"github.com/pkg/errors"
)

// Model is a recognizer.
type Model struct {
	Charset  *lexicon.Charset
	Listener *encoder.Listener
	Speller  *decoder.Decoder

	encCfg encoder.Config
	decCfg decoder.Config
	seed   int64
}

// Option configures a Model.
type Option func(*Model)

// WithEncoderConfig sets listener hyperparameters.
func WithEncoderConfig(cfg encoder.Config) Option {
	return func(m *Model) {
		m.encCfg = cfg
	}
}

// WithDecoderConfig sets speller hyperparameters.
func WithDecoderConfig(cfg decoder.Config) Option {
	return func(m *Model) {
		m.decCfg = cfg
	}
}

// WithSeed sets the seed for weight initialisation and sampling.
func WithSeed(seed int64) Option {
	return func(m *Model) {
		m.seed = seed
	}
}

// New creates a randomly initialised model over charset. Listener and
// speller must agree on heads, key and value sizes.
func New(charset *lexicon.Charset, opts ...Option) (*Model, error) {
	m := &Model{
		Charset: charset,
		encCfg:  encoder.DefaultConfig(),
		decCfg:  decoder.DefaultConfig(),
		seed:    1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.encCfg.NumHeads != m.decCfg.NumHeads || m.encCfg.KeyDim != m.decCfg.KeyDim || m.encCfg.ValueDim != m.decCfg.ValueDim {
		return nil, errors.Errorf("listener (heads=%d key=%d value=%d) and speller (heads=%d key=%d value=%d) disagree",
			m.encCfg.NumHeads, m.encCfg.KeyDim, m.encCfg.ValueDim, m.decCfg.NumHeads, m.decCfg.KeyDim, m.decCfg.ValueDim)
	}
	rng := rand.New(rand.NewSource(m.seed))
	var err error
	if m.Listener, err = encoder.New(m.encCfg, rng); err != nil {
		return nil, errors.Wrap(err, "listener")
	}
	if m.Speller, err = decoder.New(m.decCfg, charset.Size(), rng); err != nil {
		return nil, errors.Wrap(err, "speller")
	}
	return m, nil
}

// SetSeed reseeds Gumbel sampling and teacher forcing.
func (m *Model) SetSeed(seed int64) {
	m.Speller.SetRand(rand.New(rand.NewSource(seed)))
}

// Targets encodes texts into a time-major batch. Every sequence ends with
// the end-of-sequence id, which also pads the shorter sequences.
func (m *Model) Targets(texts []string) (decoder.Batch, error) {
	eos := m.Charset.EOS()
	seqs := make([][]int, len(texts))
	maxLen := 0
	for i, t := range texts {
		ids, err := m.Charset.Encode(t)
		if err != nil {
			return decoder.Batch{}, errors.Wrapf(err, "text %d", i)
		}
		seqs[i] = append(ids, eos)
		maxLen = max(maxLen, len(seqs[i]))
	}
	b := decoder.Batch{Targets: make([][]int, maxLen), Lengths: make([]int, len(texts))}
	for t := range b.Targets {
		b.Targets[t] = make([]int, len(texts))
		for i, s := range seqs {
			if t < len(s) {
				b.Targets[t][i] = s[t]
			} else {
				b.Targets[t][i] = eos
			}
		}
	}
	for i, s := range seqs {
		b.Lengths[i] = len(s)
	}
	return b, nil
}

// Forward encodes utterances and decodes texts in the given mode.
func (m *Model) Forward(utterances []mathutil.Mat, texts []string, opts decoder.DecodeOptions) (*decoder.Output, decoder.Batch, error) {
	if len(utterances) != len(texts) {
		return nil, decoder.Batch{}, errors.Errorf("%d utterances for %d texts", len(utterances), len(texts))
	}
	mem, err := m.Listener.Encode(utterances)
	if err != nil {
		return nil, decoder.Batch{}, errors.Wrap(err, "encode")
	}
	batch, err := m.Targets(texts)
	if err != nil {
		return nil, decoder.Batch{}, err
	}
	out, err := m.Speller.Decode(batch, mem, opts)
	if err != nil {
		return nil, decoder.Batch{}, errors.Wrap(err, "decode")
	}
	return out, batch, nil
}

// Loss scores texts against utterances in the given mode.
func (m *Model) Loss(utterances []mathutil.Mat, texts []string, mode decoder.Mode) (decoder.LossStats, error) {
	out, batch, err := m.Forward(utterances, texts, decoder.DecodeOptions{Mode: mode})
	if err != nil {
		return decoder.LossStats{}, err
	}
	return decoder.SequenceCrossEntropy(out.Logits, batch)
}

// Transcribe generates one transcript per utterance.
func (m *Model) Transcribe(utterances []mathutil.Mat) ([]string, error) {
	mem, err := m.Listener.Encode(utterances)
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	seqs, err := m.Speller.Generate(mem, 0)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}
	out := make([]string, len(seqs))
	for i, s := range seqs {
		out[i] = m.Charset.Decode(s)
	}
	return out, nil
}

const checkpointVersion = 1

// V1 serialized format
type serializedModelV1 struct {
	Version  int // = 1
	Chars    []string
	Listener *encoder.Listener
	Speller  *decoder.Decoder
}

// Save serializes the model with gob.
func (m *Model) Save(w io.Writer) error {
	sm := serializedModelV1{
		Version:  checkpointVersion,
		Chars:    m.Charset.Chars,
		Listener: m.Listener,
		Speller:  m.Speller,
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(sm), "encode checkpoint")
}

// SaveFile writes the checkpoint through a temporary file so that an
// interrupted write never truncates the previous checkpoint.
func (m *Model) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, "create temporary checkpoint for %q", path)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write checkpoint %q", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "close checkpoint %q", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "install checkpoint %q", path)
}

// Load deserializes a model written by Save.
func Load(r io.Reader) (*Model, error) {
	var sm serializedModelV1
	if err := gob.NewDecoder(r).Decode(&sm); err != nil {
		return nil, errors.Wrap(err, "decode checkpoint")
	}
	if sm.Version != checkpointVersion {
		return nil, errors.Errorf("unsupported checkpoint version %d", sm.Version)
	}
	if sm.Listener == nil || sm.Speller == nil {
		return nil, errors.New("checkpoint is missing the listener or the speller")
	}
	m := &Model{
		Charset:  lexicon.NewCharset(sm.Chars),
		Listener: sm.Listener,
		Speller:  sm.Speller,
		encCfg:   sm.Listener.Config,
		decCfg:   sm.Speller.Config,
	}
	if m.Speller.VocabSize != m.Charset.Size() {
		return nil, errors.Errorf("speller vocabulary %d does not match charset %d", m.Speller.VocabSize, m.Charset.Size())
	}
	m.SetSeed(1)
	return m, nil
}

// LoadFile reads a checkpoint from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open checkpoint %q", path)
	}
	defer f.Close()
	m, err := Load(f)
	return m, errors.Wrapf(err, "%q", path)
}
