// Package artifact names the files written under a save directory and
// encodes the numeric arrays stored there.
package artifact

import "path/filepath"

// Artifact file names relative to a save directory.
const (
	SpacedRefs       = "ys_spaced.txt"
	SpacedHyps       = "transcripts_spaced.txt"
	AutocHyps        = "transcript_autoc.txt"
	ProxHyps         = "transcript_prox.txt"
	AutocProxHyps    = "transcript_autoc_prox.txt"
	CERLog           = "cer_log.txt"
	TestCER          = "test_cer.npy"
	TestDist         = "test_dist.npy"
	MinCERs          = "min_cers.npy"
	MinIdxs          = "min_idxs.npy"
	Results          = "result.txt"
	Checkpoint       = "model.ckpt"
	TrainLog         = "log"
	Submission       = "submission.csv"
	BeamSubmission   = "submission_beam_5_all.csv"
	ValidationScores = "val_cer.npy"
)

// Path returns the location of name inside saveDir.
func Path(saveDir, name string) string {
	return filepath.Join(saveDir, name)
}

// MERLog is the per-pair log of one correction variant, e.g. "prox_mer_log.txt".
func MERLog(variant string) string { return variant + "_mer_log.txt" }

// MERScores holds the normalised error rates of one correction variant.
func MERScores(variant string) string { return variant + "_mer.npy" }

// MERDists holds the raw edit distances of one correction variant.
func MERDists(variant string) string { return variant + "_dist.npy" }
