package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/language"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func main() {
	order := flag.Int("order", 2, "N-gram order (2=bigram, 3=trigram)")
	output := flag.String("output", "", "output file (default: stdout)")
	dataset := flag.String("dataset", "seame", "seame splits Chinese into characters; others split on whitespace")
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: lmbuild [options] [input-files...]")
		fmt.Fprintln(os.Stderr, "  Builds an ARPA N-gram language model from transcripts, one per line.")
		fmt.Fprintln(os.Stderr, "  If no input files given, reads from stdin.")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()
	defer klog.Flush()

	b := language.NewBuilder(*order)
	ds := language.Dataset(*dataset)

	var sentCount int
	if flag.NArg() == 0 {
		n, err := readSentences(b, os.Stdin, ds)
		if err != nil {
			klog.Exitf("read stdin: %+v", err)
		}
		sentCount = n
	} else {
		for _, path := range flag.Args() {
			f, err := os.Open(path)
			if err != nil {
				klog.Warningf("open %s: %v", path, err)
				continue
			}
			n, err := readSentences(b, f, ds)
			f.Close()
			if err != nil {
				klog.Exitf("read %s: %+v", path, err)
			}
			sentCount += n
		}
	}

	w := os.Stdout
	if *output != "" {
		var err error
		if w, err = os.Create(*output); err != nil {
			klog.Exitf("create %s: %v", *output, err)
		}
		defer w.Close()
	}
	if err := b.WriteARPA(w); err != nil {
		klog.Exitf("write ARPA: %+v", err)
	}
	klog.Infof("built %d-gram model from %s sentences", b.Order(), humanize.Comma(int64(sentCount)))
}

func readSentences(b *language.Builder, r io.Reader, ds language.Dataset) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		words := language.Tokens(corpus.Normalize(scanner.Text()), ds)
		if len(words) > 0 {
			b.AddSentence(words)
			count++
		}
	}
	return count, errors.Wrap(scanner.Err(), "scan sentences")
}
