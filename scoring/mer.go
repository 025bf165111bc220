package scoring

import (
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/internal/artifact"
	"github.com/ieee0824/las-go/lexicon"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Variant names a correction applied to hypotheses before scoring.
type Variant string

const (
	// Autoc replaces out-of-vocabulary English words with the speller's choice.
	Autoc Variant = "autoc"
	// Prox replaces them with the closest reference word.
	Prox Variant = "prox"
	// AutocProx keeps the speller's choice when it is a reference word and
	// falls back to the closest reference word otherwise.
	AutocProx Variant = "autoc_prox"
)

// Variants lists the correction variants in scoring order.
var Variants = []Variant{Prox, AutocProx, Autoc}

// hypsFile returns the artifact holding the corrected hypotheses of v.
func (v Variant) hypsFile() string {
	switch v {
	case Autoc:
		return artifact.AutocHyps
	case Prox:
		return artifact.ProxHyps
	default:
		return artifact.AutocProxHyps
	}
}

// MERConfig configures a mixed error rate run.
type MERConfig struct {
	SaveDir    string
	References []string
	Hypotheses []string // aligned with References

	Speller   lexicon.Speller
	Corrector lexicon.Corrector
	// Workers bounds the correction pool; zero means one per CPU.
	Workers int
	// Progress draws a progress bar on stderr while correcting.
	Progress bool
}

// VariantResult holds the scores of one correction variant.
type VariantResult struct {
	Variant Variant
	Norm    []float64
	Raw     []int
	Mean    float64
}

// MERReport summarises a run.
type MERReport struct {
	RunID    string
	Variants []VariantResult
}

// Corrections holds the corrected hypothesis lines of every variant.
type Corrections map[Variant][]string

// RunMER writes the re-spaced references and hypotheses, produces or reuses
// the corrected hypotheses, and scores every variant against the references.
func RunMER(cfg MERConfig) (*MERReport, error) {
	if len(cfg.Hypotheses) != len(cfg.References) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d hypotheses, %d references", len(cfg.Hypotheses), len(cfg.References))
	}
	if cfg.Speller == nil {
		return nil, errors.New("no speller configured")
	}
	if cfg.Corrector == (lexicon.Corrector{}) {
		cfg.Corrector = lexicon.DefaultCorrector()
	}
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create save directory %q", cfg.SaveDir)
	}
	report := &MERReport{RunID: uuid.NewString()}
	klog.Infof("mer run %s: %s utterances in %q", report.RunID, humanize.Comma(int64(len(cfg.References))), cfg.SaveDir)

	refs := respaceAll(cfg.References)
	hyps := respaceAll(cfg.Hypotheses)
	if err := corpus.WriteLines(artifact.Path(cfg.SaveDir, artifact.SpacedRefs), refs); err != nil {
		return nil, err
	}
	if err := corpus.WriteLines(artifact.Path(cfg.SaveDir, artifact.SpacedHyps), hyps); err != nil {
		return nil, err
	}

	corr, err := loadOrCorrect(cfg, refs, hyps)
	if err != nil {
		return nil, err
	}

	base := ReferenceVocabulary(refs)
	for _, v := range Variants {
		res, err := scoreVariant(cfg.SaveDir, v, corr[v], refs, base)
		if err != nil {
			return nil, errors.Wrapf(err, "variant %s", v)
		}
		klog.Infof("mer run %s: %s avg mer %.4f", report.RunID, v, res.Mean)
		report.Variants = append(report.Variants, res)
	}
	return report, nil
}

func respaceAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(lexicon.Respace(l))
	}
	return out
}

func loadOrCorrect(cfg MERConfig, refs, hyps []string) (Corrections, error) {
	paths := make([]string, len(Variants))
	for i, v := range Variants {
		paths[i] = artifact.Path(cfg.SaveDir, v.hypsFile())
	}
	if corpus.Exists(paths...) {
		klog.Infof("reusing corrected transcripts in %q", cfg.SaveDir)
		corr := make(Corrections, len(Variants))
		for i, v := range Variants {
			lines, err := corpus.ReadLines(paths[i])
			if err != nil {
				return nil, err
			}
			corr[v] = lines
		}
		return corr, nil
	}

	klog.Infof("generating corrected transcripts for %s lines", humanize.Comma(int64(len(hyps))))
	english := lexicon.NewVocabulary()
	for _, r := range refs {
		for _, w := range lexicon.EnglishWords(r) {
			english.Add(w)
		}
	}
	corr, err := Correct(hyps, english, cfg.Speller, cfg.Corrector, cfg.Workers, cfg.Progress)
	if err != nil {
		return nil, err
	}
	for i, v := range Variants {
		if err := corpus.WriteLines(paths[i], corr[v]); err != nil {
			return nil, err
		}
	}
	return corr, nil
}

// Correct rewrites every non-Chinese word of lines that is absent from
// english, once per variant. Lines are processed by a bounded pool of
// workers; english and the speller are only read.
func Correct(lines []string, english *lexicon.Vocabulary, sp lexicon.Speller, c lexicon.Corrector, workers int, progress bool) (Corrections, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	autoc := make([]string, len(lines))
	prox := make([]string, len(lines))
	autocProx := make([]string, len(lines))

	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.Default(int64(len(lines)), "correcting")
	} else {
		bar = progressbar.DefaultSilent(int64(len(lines)))
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, line := range lines {
		g.Go(func() error {
			autoc[i], prox[i], autocProx[i] = correctLine(line, english, sp, c)
			return bar.Add(1)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "correct transcripts")
	}
	_ = bar.Finish()
	return Corrections{Autoc: autoc, Prox: prox, AutocProx: autocProx}, nil
}

func correctLine(line string, english *lexicon.Vocabulary, sp lexicon.Speller, c lexicon.Corrector) (autoc, prox, autocProx string) {
	words := strings.Fields(line)
	a := make([]string, len(words))
	p := make([]string, len(words))
	ap := make([]string, len(words))
	for i, w := range words {
		a[i], p[i], ap[i] = w, w, w
		if lexicon.IsChineseToken(w) {
			continue
		}
		if !english.Contains(w) {
			a[i] = sp.Correct(w)
			p[i] = c.ClosestWord(w, english)
		}
		if english.Contains(a[i]) {
			ap[i] = a[i]
		} else {
			ap[i] = p[i]
		}
	}
	return strings.Join(a, " "), strings.Join(p, " "), strings.Join(ap, " ")
}

// scoreVariant scores hyps with a symbol map over the reference vocabulary
// augmented with the variant's units, and writes its log and arrays.
func scoreVariant(saveDir string, v Variant, hyps, refs []string, base *lexicon.Vocabulary) (VariantResult, error) {
	vocab := base.Clone()
	vocab.AddLines(hyps)
	m, err := lexicon.BuildSymbolMap(vocab)
	if err != nil {
		return VariantResult{}, err
	}
	logPath := artifact.Path(saveDir, artifact.MERLog(string(v)))
	f, err := os.Create(logPath)
	if err != nil {
		return VariantResult{}, errors.Wrapf(err, "create %q", logPath)
	}
	norm, raw, err := (&Evaluator{Map: m, Log: f}).Score(hyps, refs)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %q", logPath)
	}
	if err != nil {
		return VariantResult{}, err
	}
	if err := artifact.SaveFloat64s(artifact.Path(saveDir, artifact.MERScores(string(v))), norm); err != nil {
		return VariantResult{}, err
	}
	if err := artifact.SaveInt64s(artifact.Path(saveDir, artifact.MERDists(string(v))), raw); err != nil {
		return VariantResult{}, err
	}
	return VariantResult{Variant: v, Norm: norm, Raw: raw, Mean: Mean(norm)}, nil
}
