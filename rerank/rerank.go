// Package rerank orders beam-search candidates by a sentence scorer and
// keeps the best candidate of every utterance.
package rerank

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/internal/artifact"
	"github.com/ieee0824/las-go/language"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Scorer assigns a loss to a sentence. Lower is better.
type Scorer interface {
	Loss(sentence string) (float64, error)
}

// LMScorer scores sentences by their mean per-token cross entropy under an
// n-gram model.
type LMScorer struct {
	Model   *language.NGramModel
	Dataset language.Dataset
}

// Loss implements Scorer.
func (s LMScorer) Loss(sentence string) (float64, error) {
	return s.Model.CrossEntropy(language.Tokens(sentence, s.Dataset)), nil
}

// Ranked is the outcome for one utterance.
type Ranked struct {
	ID         string
	Candidates []string  // best first
	Losses     []float64 // aligned with Candidates; nil when not scored
}

// Best returns the selected transcript.
func (r Ranked) Best() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0]
}

// Scored reports whether the candidates were scored and reordered.
func (r Ranked) Scored() bool { return r.Losses != nil }

// Reranker picks the lowest-loss candidate of each group.
type Reranker struct {
	Scorer Scorer

	// Results receives the best line of every group as soon as it is known.
	Results io.Writer
	// Report, if set, receives "id,best" per group.
	Report io.Writer
}

// Run reranks groups in ascending id order. Ids are compared as integers
// when all of them parse as integers; groups whose ids denote the same
// integer are merged. A group with an empty candidate is not scored and
// keeps its first candidate.
func (r *Reranker) Run(groups []corpus.BeamSet) ([]Ranked, error) {
	groups = sortGroups(groups)
	out := make([]Ranked, 0, len(groups))
	for _, g := range groups {
		ranked, err := r.rank(g)
		if err != nil {
			return out, errors.Wrapf(err, "utterance %s", g.ID)
		}
		if r.Report != nil {
			if _, err := fmt.Fprintf(r.Report, "%s,%s\n", ranked.ID, ranked.Best()); err != nil {
				return out, errors.Wrap(err, "write report")
			}
		}
		if ranked.Scored() && r.Results != nil {
			if _, err := io.WriteString(r.Results, ranked.Best()+"\n"); err != nil {
				return out, errors.Wrap(err, "write results")
			}
		}
		out = append(out, ranked)
	}
	return out, nil
}

func (r *Reranker) rank(g corpus.BeamSet) (Ranked, error) {
	ranked := Ranked{ID: g.ID, Candidates: append([]string(nil), g.Hypotheses...)}
	for _, h := range g.Hypotheses {
		if h == "" {
			klog.V(1).Infof("utterance %s has an empty candidate; keeping the first", g.ID)
			return ranked, nil
		}
	}
	type scored struct {
		loss float64
		text string
	}
	res := make([]scored, len(g.Hypotheses))
	for i, h := range g.Hypotheses {
		loss, err := r.Scorer.Loss(h)
		if err != nil {
			return Ranked{}, errors.Wrapf(err, "score %q", h)
		}
		res[i] = scored{loss, h}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].loss < res[j].loss })
	ranked.Losses = make([]float64, len(res))
	for i, s := range res {
		ranked.Candidates[i] = s.text
		ranked.Losses[i] = s.loss
	}
	return ranked, nil
}

func sortGroups(groups []corpus.BeamSet) []corpus.BeamSet {
	nums := make([]int, len(groups))
	numeric := true
	for i, g := range groups {
		n, err := strconv.Atoi(g.ID)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = n
	}
	if !numeric {
		out := append([]corpus.BeamSet(nil), groups...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}

	merged := make(map[int]*corpus.BeamSet)
	keys := make([]int, 0, len(groups))
	for i, g := range groups {
		m, ok := merged[nums[i]]
		if !ok {
			m = &corpus.BeamSet{ID: strconv.Itoa(nums[i])}
			merged[nums[i]] = m
			keys = append(keys, nums[i])
		}
		m.Hypotheses = append(m.Hypotheses, g.Hypotheses...)
	}
	sort.Ints(keys)
	out := make([]corpus.BeamSet, len(keys))
	for i, k := range keys {
		out[i] = *merged[k]
	}
	return out
}

// OpenResults opens result.txt next to the submission CSV for appending.
func OpenResults(csvPath string) (*os.File, error) {
	path := artifact.Path(filepath.Dir(csvPath), artifact.Results)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	return f, nil
}
