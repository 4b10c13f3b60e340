package catalog

import (
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
	"github.com/mrtbatch/mrtbatch/pkg/util"
)

// BadFilePolicy determines how malformed file names in a list file are handled.
type BadFilePolicy int

const (
	// PolicyStrict aborts on the first malformed name.
	PolicyStrict BadFilePolicy = iota
	// PolicySkip warns about malformed names and continues.
	PolicySkip
)

func (p BadFilePolicy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicySkip:
		return "skip"
	default:
		return "unknown"
	}
}

// PolicyFor maps the skip-bad switch to a policy.
func PolicyFor(skipBad bool) BadFilePolicy {
	if skipBad {
		return PolicySkip
	}
	return PolicyStrict
}

// Reader builds a Catalog from a list file or a directory.
type Reader struct {
	Host       pathconv.Host
	ScriptType pathconv.ScriptType
	Policy     BadFilePolicy
	Logger     *slog.Logger

	skipped int
}

// NewReader creates a reader with a default logger.
func NewReader(host pathconv.Host, st pathconv.ScriptType, policy BadFilePolicy) *Reader {
	return &Reader{
		Host:       host,
		ScriptType: st,
		Policy:     policy,
		Logger:     slog.Default(),
	}
}

// Skipped returns the number of malformed names skipped by the last
// ParseListFile call.
func (r *Reader) Skipped() int {
	return r.skipped
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// ParseListFile reads one HDF path per line. Plain text, gzip-compressed
// text (.gz) and Excel workbooks (.xlsx, first non-empty cell of each row on
// the first sheet) are accepted.
func (r *Reader) ParseListFile(path string) (*Catalog, error) {
	r.logger().Debug("processing list file", "path", path)
	r.skipped = 0

	var lines []string
	var err error
	if util.IsWorkbook(path) {
		lines, err = readWorkbookLines(path)
	} else {
		lines, err = r.readTextLines(path)
	}
	if err != nil {
		return nil, err
	}

	cat := New(r.Host)
	for _, line := range lines {
		if err := r.addListLine(cat, line); err != nil {
			return nil, err
		}
	}

	if cat.IsEmpty() {
		return nil, mrterrors.Newf(mrterrors.CodeEmptyCatalog,
			"no HDF files were found in file to process: %s", path)
	}
	return cat, nil
}

func (r *Reader) readTextLines(path string) ([]string, error) {
	in, cleanup, err := util.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mrterrors.Wrapf(err, mrterrors.CodeNotFound, "file not found: %s", path)
		}
		return nil, mrterrors.ReadFailed(path, err)
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			r.logger().Warn("error closing file", "path", path, "error", cerr)
		}
	}()

	var lines []string
	sc := util.NewLineScanner(in)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, mrterrors.ReadFailed(path, err)
	}
	return lines, nil
}

func readWorkbookLines(path string) ([]string, error) {
	xl, err := excelize.OpenFile(path)
	if err != nil {
		return nil, mrterrors.ReadFailed(path, err)
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := xl.GetRows(sheets[0])
	if err != nil {
		return nil, mrterrors.ReadFailed(path, err)
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				lines = append(lines, cell)
				break
			}
		}
	}
	return lines, nil
}

// addListLine classifies one list-file line and adds it to cat.
func (r *Reader) addListLine(cat *Catalog, line string) error {
	line = removeQuotes(strings.TrimSpace(line))
	if line == "" {
		return nil
	}

	dir, file := r.splitPath(line)
	parts, ok := ParseFilename(file)
	if !ok {
		if r.Policy == PolicySkip {
			r.logger().Warn("unexpected file pattern, skipping file", "file", file)
			r.skipped++
			return nil
		}
		return mrterrors.Newf(mrterrors.CodeBadFilename, "unexpected file pattern: %s", file)
	}

	cat.Add(parts.ShortName, parts.Date, dir, file)
	return nil
}

// splitPath splits line at the last / or \. A bare file name is placed in
// the current directory, spelled the way the target script expects.
func (r *Reader) splitPath(line string) (dir, file string) {
	pos := strings.LastIndexAny(line, `/\`)
	if pos == -1 {
		if r.ScriptType == pathconv.ScriptBatch {
			return `.\`, line
		}
		return "./", line
	}
	return line[:pos], line[pos+1:]
}

// ParseDirectory adds every entry of dir whose name looks like an HDF file.
// Names that fail full classification are skipped silently regardless of
// the policy.
func (r *Reader) ParseDirectory(dir string) (*Catalog, error) {
	r.logger().Debug("processing directory", "path", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mrterrors.NotFound("directory", dir)
		}
		return nil, mrterrors.ReadFailed(dir, err)
	}

	cat := New(r.Host)
	for _, e := range entries {
		if e.IsDir() || !LooksLikeHDF(e.Name()) {
			continue
		}
		parts, ok := ParseFilename(e.Name())
		if !ok {
			r.logger().Debug("ignoring file with unexpected pattern", "file", e.Name())
			continue
		}
		cat.Add(parts.ShortName, parts.Date, dir, e.Name())
	}

	if cat.IsEmpty() {
		return nil, mrterrors.Newf(mrterrors.CodeEmptyCatalog,
			"no HDF files were found in directory to process: %s", dir)
	}
	return cat, nil
}

func removeQuotes(s string) string {
	return strings.TrimRight(strings.TrimLeft(s, `"`), `"`)
}
