package ytdlp

import "path/filepath"

// Download modes. Each maps to a distinct extractor argument set.
const (
	ModeFull = "full"
	ModeText = "text"
	ModeWav  = "wav"
)

// DownloadRequest describes one extraction run. OutputDir is the directory
// the extractor writes into; Stem is the base filename without extension.
type DownloadRequest struct {
	URL       string
	Mode      string
	OutputDir string
	Stem      string
}

// buildArgs assembles the extractor argument list for a request. The output
// template pins both directory and filename so the write target is known
// before the process starts.
func buildArgs(req DownloadRequest, subtitleLanguage string) []string {
	args := []string{
		"--no-colors",
		"--newline",
		"--restrict-filenames",
	}

	template := filepath.Join(req.OutputDir, req.Stem+".%(ext)s")

	switch req.Mode {
	case ModeFull:
		args = append(args,
			"-f", "bv*+ba/b",
			"--merge-output-format", "mp4",
			"--write-auto-sub", "--write-sub", "--sub-lang", subtitleLanguage, "--convert-subs", "srt",
			"--embed-thumbnail", "--write-thumbnail", "--add-metadata", "--write-description",
			"-o", template,
		)
	case ModeText:
		args = append(args,
			"--skip-download",
			"--write-auto-sub", "--write-sub", "--sub-lang", subtitleLanguage, "--convert-subs", "srt",
			"-o", template,
		)
	case ModeWav:
		args = append(args,
			"-f", "ba/b",
			"-x", "--audio-format", "wav", "--audio-quality", "0",
			"--write-thumbnail", "--write-description",
			"-o", template,
		)
	}

	return append(args, req.URL)
}
