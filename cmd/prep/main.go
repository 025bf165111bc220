// prep cuts conversation recordings into utterance segments and writes
// their MFCC features for the las command.
package main

import (
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/feature"
	"github.com/ieee0824/las-go/internal/report"
	"k8s.io/klog/v2"
)

var (
	flagConv     = flag.String("conv", "data/text/conv.txt", "conversation transcript, one \"<recording>_<start>_<end> <text>\" per line")
	flagRawDir   = flag.String("raw-wav", "data/raw_wav", "directory holding the <recording>.wav files")
	flagOut      = flag.String("out", "data/wav", "output directory for segments and features")
	flagWAV      = flag.Bool("wav", false, "also write each segment as a WAV file")
	flagCMN      = flag.Bool("cmn", true, "apply cepstral mean normalization")
	flagWorkers  = flag.Int("workers", 0, "parallel recordings (0 = one per CPU)")
	flagProgress = flag.Bool("progress", true, "draw a progress bar")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg := feature.DefaultConfig()
	cfg.UseCMN = *flagCMN
	rep, err := corpus.Prepare(corpus.PrepareConfig{
		Conversations: *flagConv,
		RawDir:        *flagRawDir,
		OutDir:        *flagOut,
		WriteWAV:      *flagWAV,
		Feature:       cfg,
		Workers:       *flagWorkers,
		Progress:      *flagProgress,
	})
	if err != nil {
		klog.Exitf("prepare: %+v", err)
	}
	fmt.Println(report.Table([]string{"recordings", "segments", "frames", "feature dim"},
		[]string{humanize.Comma(int64(rep.Recordings)), humanize.Comma(int64(rep.Segments)),
			humanize.Comma(int64(rep.Frames)), fmt.Sprint(cfg.Dim())}))
}
