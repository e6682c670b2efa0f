package survey

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Builder constructs the strip database for one resource and returns the
// path of the produced file.
type Builder interface {
	Build(ctx context.Context, r Resource, decDeg, loDeg, hiDeg float64) (string, error)
}

// CommandBuilder shells out to an external builder binary per strip:
//
//	<command> --catalog <resource> --dec <center> --dec-min <lo> --dec-max <hi> --out <path>
//
// The command must create the file at the --out path and exit zero. The
// SQLite construction itself lives entirely in that binary.
type CommandBuilder struct {
	Command string
	Dir     string // output catalogs directory
}

// Build implements Builder.
func (b CommandBuilder) Build(ctx context.Context, r Resource, decDeg, loDeg, hiDeg float64) (string, error) {
	out := filepath.Join(b.Dir, StripFile(r, decDeg))
	args := []string{
		"--catalog", string(r),
		"--dec", strconv.FormatFloat(decDeg, 'f', 1, 64),
		"--dec-min", strconv.FormatFloat(loDeg, 'f', 1, 64),
		"--dec-max", strconv.FormatFloat(hiDeg, 'f', 1, 64),
		"--out", out,
	}

	cmd := exec.CommandContext(ctx, b.Command, args...)
	combined, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("build %s strip at %+.1f: %w: %s", r, decDeg, err, firstLine(combined))
	}
	return out, nil
}

// firstLine trims builder output to something that fits in an error.
func firstLine(out []byte) string {
	out = bytes.TrimSpace(out)
	if i := bytes.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	if len(out) > 200 {
		out = out[:200]
	}
	return string(out)
}
