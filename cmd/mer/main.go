package main

import (
	"flag"
	"fmt"

	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/internal/artifact"
	"github.com/ieee0824/las-go/internal/report"
	"github.com/ieee0824/las-go/lexicon"
	"github.com/ieee0824/las-go/scoring"
	"k8s.io/klog/v2"
)

var (
	flagMode      = flag.String("mode", "mer", "mer or topk")
	flagSaveDir   = flag.String("save-directory", "output/baseline/v1", "directory holding the submission and receiving the artifacts")
	flagRefs      = flag.String("refs", "", "reference transcripts, one per line")
	flagCSV       = flag.String("csv", "", "hypothesis CSV (default: submission.csv, or submission_beam_5_all.csv for topk, in the save directory)")
	flagSpellDict = flag.String("spell-dict", "", "text whose English words train the speller (default: the references)")
	flagWorkers   = flag.Int("workers", 0, "correction workers (0 = one per CPU)")
	flagThreshold = flag.Int("threshold", 5, "whole-word distance above which split corrections are tried")
	flagSubThres  = flag.Int("sub-threshold", 2, "maximum distance of the first half of a split correction")
	flagProgress  = flag.Bool("progress", true, "draw a progress bar while correcting")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *flagRefs == "" {
		klog.Exitf("-refs is required")
	}
	refs, err := corpus.LoadTranscriptsFile(*flagRefs)
	if err != nil {
		klog.Exitf("load references: %+v", err)
	}

	switch *flagMode {
	case "mer":
		runMER(corpus.Texts(refs))
	case "topk":
		runTopK(corpus.Texts(refs))
	default:
		klog.Exitf("unknown mode %q", *flagMode)
	}
}

func csvPath(def string) string {
	if *flagCSV != "" {
		return *flagCSV
	}
	return artifact.Path(*flagSaveDir, def)
}

func runMER(refs []string) {
	hyps, err := corpus.ReadHypothesesFile(csvPath(artifact.Submission))
	if err != nil {
		klog.Exitf("load hypotheses: %+v", err)
	}
	spellLines := refs
	if *flagSpellDict != "" {
		if spellLines, err = corpus.ReadLines(*flagSpellDict); err != nil {
			klog.Exitf("load spelling dictionary: %+v", err)
		}
	}
	rep, err := scoring.RunMER(scoring.MERConfig{
		SaveDir:    *flagSaveDir,
		References: refs,
		Hypotheses: corpus.HypothesisTexts(hyps),
		Speller:    lexicon.SpellerFromLines(spellLines),
		Corrector:  lexicon.Corrector{Threshold: *flagThreshold, SubThreshold: *flagSubThres},
		Workers:    *flagWorkers,
		Progress:   *flagProgress,
	})
	if err != nil {
		klog.Exitf("mer: %+v", err)
	}
	rows := make([][]string, len(rep.Variants))
	for i, v := range rep.Variants {
		rows[i] = []string{string(v.Variant), fmt.Sprintf("%.4f", v.Mean)}
	}
	fmt.Println(report.Table([]string{"variant", "avg mer"}, rows...))
}

func runTopK(refs []string) {
	beams, err := corpus.ReadHypothesesFile(csvPath(artifact.BeamSubmission))
	if err != nil {
		klog.Exitf("load beams: %+v", err)
	}
	rep, err := scoring.RunTopK(scoring.TopKConfig{SaveDir: *flagSaveDir, References: refs, Beams: beams})
	if err != nil {
		klog.Exitf("top-k: %+v", err)
	}
	fmt.Println(report.Table([]string{"utterances", "beams", "avg top-k cer"},
		[]string{fmt.Sprint(len(rep.MinCERs)), fmt.Sprint(rep.Width), fmt.Sprintf("%.4f", rep.Mean)}))
}
