// Package discr scores transcripts with a bidirectional LSTM discriminator
// trained to rank references above generated hypotheses.
package discr

import (
	"encoding/gob"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/lexicon"
	"github.com/ieee0824/las-go/nn"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// Config holds discriminator hyperparameters.
type Config struct {
	EmbeddingDim int
	HiddenDim    int
	NumLayers    int
}

// DefaultConfig returns the sizes used for the Tagalog experiments.
func DefaultConfig() Config {
	return Config{EmbeddingDim: 300, HiddenDim: 650, NumLayers: 1}
}

// Validate checks that every size is positive.
func (c Config) Validate() error {
	if c.EmbeddingDim <= 0 || c.HiddenDim <= 0 || c.NumLayers <= 0 {
		return errors.Errorf("invalid discriminator config %+v", c)
	}
	return nil
}

// Discriminator maps a token sequence to a realness score.
type Discriminator struct {
	Config    Config
	Embedding *nn.Embedding
	Layers    []*nn.BiLSTM
	W         []float64 // 2*HiddenDim
}

// New creates a randomly initialised discriminator over vocabSize tokens.
func New(cfg Config, vocabSize int, rng *rand.Rand) (*Discriminator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocabSize <= 0 {
		return nil, errors.Errorf("vocabulary size %d", vocabSize)
	}
	d := &Discriminator{
		Config:    cfg,
		Embedding: nn.NewEmbedding(vocabSize, cfg.EmbeddingDim, rng),
		W:         make([]float64, 2*cfg.HiddenDim),
	}
	in := cfg.EmbeddingDim
	for i := 0; i < cfg.NumLayers; i++ {
		l := nn.NewBiLSTM(in, cfg.HiddenDim, rng)
		d.Layers = append(d.Layers, l)
		in = l.OutDim()
	}
	for i := range d.W {
		d.W[i] = rng.NormFloat64()
	}
	return d, nil
}

// Represent returns the concatenated final forward and backward hidden
// states of the top layer.
func (d *Discriminator) Represent(ids []int) (mathutil.Vec, error) {
	if len(ids) == 0 {
		return nil, errors.New("empty sequence")
	}
	x, err := d.Embedding.Lookup(ids)
	if err != nil {
		return nil, err
	}
	for i, l := range d.Layers {
		if x, err = l.Forward(x); err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
	}
	return d.Layers[len(d.Layers)-1].Final(x), nil
}

// Score returns w·h for the sequence representation h.
func (d *Discriminator) Score(ids []int) (float64, error) {
	h, err := d.Represent(ids)
	if err != nil {
		return 0, err
	}
	return floats.Dot(d.W, h), nil
}

// HingeLoss is mean(max(0, cer/100 - (true - gen))) over aligned pairs of
// reference and hypothesis scores, cers given in percent.
func HingeLoss(trueScores, genScores, cers []float64) (float64, error) {
	if len(trueScores) != len(genScores) || len(trueScores) != len(cers) {
		return 0, errors.Errorf("length mismatch: %d true, %d generated, %d cers", len(trueScores), len(genScores), len(cers))
	}
	if len(cers) == 0 {
		return 0, nil
	}
	margins := make([]float64, len(cers))
	for i := range cers {
		margins[i] = max(0, cers[i]/100-(trueScores[i]-genScores[i]))
	}
	return stat.Mean(margins, nil), nil
}

// Scorer ranks transcripts by negated discriminator score, so that the most
// reference-like transcript has the lowest loss.
type Scorer struct {
	Model   *Discriminator
	Charset *lexicon.Charset
}

// Loss implements rerank.Scorer. A transcript with characters outside the
// charset cannot be represented and gets an infinite loss.
func (s Scorer) Loss(sentence string) (float64, error) {
	ids, err := s.Charset.Encode(sentence)
	if errors.Is(err, lexicon.ErrUnknownToken) {
		klog.V(1).Infof("unscorable transcript %q: %v", sentence, err)
		return math.Inf(1), nil
	}
	if err != nil {
		return 0, err
	}
	score, err := s.Model.Score(ids)
	return -score, err
}

const checkpointVersion = 1

// V1 serialized format
type serializedDiscriminatorV1 struct {
	Version int // = 1
	Model   *Discriminator
	Chars   []string
}

// Save writes the discriminator and its character set with gob.
func Save(w io.Writer, d *Discriminator, cs *lexicon.Charset) error {
	sd := serializedDiscriminatorV1{Version: checkpointVersion, Model: d, Chars: cs.Chars}
	return errors.Wrap(gob.NewEncoder(w).Encode(sd), "encode discriminator")
}

// Load reads a discriminator written by Save.
func Load(r io.Reader) (*Discriminator, *lexicon.Charset, error) {
	var sd serializedDiscriminatorV1
	if err := gob.NewDecoder(r).Decode(&sd); err != nil {
		return nil, nil, errors.Wrap(err, "decode discriminator")
	}
	if sd.Version != checkpointVersion {
		return nil, nil, errors.Errorf("unsupported discriminator version %d", sd.Version)
	}
	if sd.Model == nil || len(sd.Model.Layers) == 0 {
		return nil, nil, errors.New("discriminator checkpoint has no layers")
	}
	return sd.Model, lexicon.NewCharset(sd.Chars), nil
}

// LoadFile reads a discriminator checkpoint from path.
func LoadFile(path string) (*Discriminator, *lexicon.Charset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()
	d, cs, err := Load(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%q", path)
	}
	return d, cs, nil
}
