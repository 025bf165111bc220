package main

import (
	"flag"
	"os"

	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/discr"
	"github.com/ieee0824/las-go/language"
	"github.com/ieee0824/las-go/rerank"
	"k8s.io/klog/v2"
)

var (
	flagLM      = flag.String("lm", "", "ARPA language model")
	flagDiscr   = flag.String("discr", "", "discriminator checkpoint, used instead of -lm")
	flagCSV     = flag.String("submission-csv", "", "beam CSV with rows id,candidate")
	flagDataset = flag.String("dataset", "seame", "seame splits Chinese into characters; others split on whitespace")
	flagOOV     = flag.Float64("oov-logprob", 0, "natural-log probability of unseen words (0 keeps the default)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *flagCSV == "" || (*flagLM == "") == (*flagDiscr == "") {
		klog.Exitf("usage: rerank -submission-csv CSV (-lm ARPA | -discr CKPT)")
	}

	var scorer rerank.Scorer
	if *flagLM != "" {
		lm, err := language.LoadARPAFile(*flagLM)
		if err != nil {
			klog.Exitf("load language model: %+v", err)
		}
		if *flagOOV != 0 {
			lm.OOVLogProb = *flagOOV
		}
		chinese, other := lm.ScriptCounts()
		klog.Infof("language model vocabulary: %d Chinese, %d other", chinese, other)
		scorer = rerank.LMScorer{Model: lm, Dataset: language.Dataset(*flagDataset)}
	} else {
		d, cs, err := discr.LoadFile(*flagDiscr)
		if err != nil {
			klog.Exitf("load discriminator: %+v", err)
		}
		scorer = discr.Scorer{Model: d, Charset: cs}
	}

	hyps, err := corpus.ReadHypothesesFile(*flagCSV)
	if err != nil {
		klog.Exitf("load candidates: %+v", err)
	}
	results, err := rerank.OpenResults(*flagCSV)
	if err != nil {
		klog.Exitf("open results: %+v", err)
	}
	defer results.Close()

	r := &rerank.Reranker{Scorer: scorer, Results: results, Report: os.Stdout}
	ranked, err := r.Run(corpus.GroupBeams(hyps))
	if err != nil {
		klog.Exitf("rerank: %+v", err)
	}
	klog.Infof("reranked %d utterances", len(ranked))
}
