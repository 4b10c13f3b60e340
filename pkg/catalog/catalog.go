// Package catalog groups HDF source files by product short name, acquisition
// date and source directory.
//
// Each level keeps its children in insertion order: traversal order decides
// the order of the generated script, so it must be reproducible. Lookups go
// through a normalized-key index rather than a linear scan.
package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/mrtbatch/mrtbatch/pkg/pathconv"
)

// Catalog is the root of the short name -> date -> path -> file tree.
// It is built once per run and read-only afterwards.
type Catalog struct {
	host       pathconv.Host
	shortNames []*ShortName
	index      map[string]*ShortName
}

// ShortName is a product identifier such as MOD09GA.
type ShortName struct {
	Name  string
	Key   string
	dates []*DateGroup
	index map[string]*DateGroup
}

// DateGroup is one acquisition date of the form A<YYYYDDD>.
type DateGroup struct {
	Date  string
	Key   string
	paths []*PathGroup
	index map[string]*PathGroup
}

// PathGroup is one source directory and the file names found in it.
type PathGroup struct {
	Path  string
	Key   string
	files []string
	index map[string]struct{}
}

// New creates an empty catalog. The host decides how source directories
// are normalized for comparison.
func New(host pathconv.Host) *Catalog {
	return &Catalog{
		host:  host,
		index: make(map[string]*ShortName),
	}
}

// NormalizeShortName returns the comparison key for a short name.
func NormalizeShortName(name string) string {
	return strings.ToUpper(name)
}

// NormalizeDate returns the comparison key for a date token.
func NormalizeDate(date string) string {
	return strings.ToUpper(date)
}

// NormalizePath returns the comparison key for a source directory: upper
// case, host-native separators, Cygwin and drive prefixes resolved, and no
// trailing separator, so C:\data\ and c:/data compare equal on Windows.
func NormalizePath(host pathconv.Host, path string) string {
	key := host.ToOSPath(strings.ToUpper(path))
	for len(key) > 1 && pathconv.HasTrailingSeparator(key) {
		key = key[:len(key)-1]
	}
	return key
}

// Add records one observation. Adding a quadruple that is already present
// leaves the catalog unchanged and returns false.
func (c *Catalog) Add(shortName, date, path, file string) bool {
	key := NormalizeShortName(shortName)
	sn, ok := c.index[key]
	if !ok {
		sn = &ShortName{
			Name:  shortName,
			Key:   key,
			index: make(map[string]*DateGroup),
		}
		c.index[key] = sn
		c.shortNames = append(c.shortNames, sn)
	}
	return sn.add(c.host, date, path, file)
}

// ShortNames returns the short names in insertion order.
func (c *Catalog) ShortNames() []*ShortName {
	return c.shortNames
}

// Find returns the short name matching name, or nil.
func (c *Catalog) Find(name string) *ShortName {
	return c.index[NormalizeShortName(name)]
}

// IsEmpty reports whether no file has been added.
func (c *Catalog) IsEmpty() bool {
	return len(c.shortNames) == 0
}

// GroupCount returns the number of (short name, date) pairs.
func (c *Catalog) GroupCount() int {
	n := 0
	for _, sn := range c.shortNames {
		n += len(sn.dates)
	}
	return n
}

// FileCount returns the number of distinct files in the catalog.
func (c *Catalog) FileCount() int {
	n := 0
	for _, sn := range c.shortNames {
		for _, d := range sn.dates {
			for _, p := range d.paths {
				n += len(p.files)
			}
		}
	}
	return n
}

// Walk calls fn for every (short name, date) pair in traversal order and
// stops at the first error.
func (c *Catalog) Walk(fn func(sn *ShortName, d *DateGroup) error) error {
	for _, sn := range c.shortNames {
		for _, d := range sn.dates {
			if err := fn(sn, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTree prints the catalog as an indented tree, using normalized keys
// when normalized is set.
func (c *Catalog) WriteTree(w io.Writer, normalized bool) error {
	pick := func(raw, key string) string {
		if normalized {
			return key
		}
		return raw
	}

	for _, sn := range c.shortNames {
		if _, err := fmt.Fprintf(w, "ShortName: %s\n", pick(sn.Name, sn.Key)); err != nil {
			return err
		}
		for _, d := range sn.dates {
			if _, err := fmt.Fprintf(w, "  Date: %s\n", pick(d.Date, d.Key)); err != nil {
				return err
			}
			for _, p := range d.paths {
				if _, err := fmt.Fprintf(w, "    Path: %s\n", pick(p.Path, p.Key)); err != nil {
					return err
				}
				for _, f := range p.files {
					if _, err := fmt.Fprintf(w, "      File: %s\n", f); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Dates returns the date groups in insertion order.
func (s *ShortName) Dates() []*DateGroup {
	return s.dates
}

// Find returns the date group matching date, or nil.
func (s *ShortName) Find(date string) *DateGroup {
	return s.index[NormalizeDate(date)]
}

func (s *ShortName) add(host pathconv.Host, date, path, file string) bool {
	key := NormalizeDate(date)
	d, ok := s.index[key]
	if !ok {
		d = &DateGroup{
			Date:  date,
			Key:   key,
			index: make(map[string]*PathGroup),
		}
		s.index[key] = d
		s.dates = append(s.dates, d)
	}
	return d.add(host, path, file)
}

// Paths returns the path groups in insertion order.
func (d *DateGroup) Paths() []*PathGroup {
	return d.paths
}

// FindPath returns the path group matching path, or nil.
func (d *DateGroup) FindPath(host pathconv.Host, path string) *PathGroup {
	return d.index[NormalizePath(host, path)]
}

// FileCount returns the number of files across all path groups.
func (d *DateGroup) FileCount() int {
	n := 0
	for _, p := range d.paths {
		n += len(p.files)
	}
	return n
}

func (d *DateGroup) add(host pathconv.Host, path, file string) bool {
	key := NormalizePath(host, path)
	p, ok := d.index[key]
	if !ok {
		p = &PathGroup{
			Path:  path,
			Key:   key,
			index: make(map[string]struct{}),
		}
		d.index[key] = p
		d.paths = append(d.paths, p)
	}
	return p.add(file)
}

// Files returns the file names in insertion order.
func (p *PathGroup) Files() []string {
	return p.files
}

// HasFile reports whether file is present, ignoring case.
func (p *PathGroup) HasFile(file string) bool {
	_, ok := p.index[strings.ToUpper(file)]
	return ok
}

func (p *PathGroup) add(file string) bool {
	key := strings.ToUpper(file)
	if _, ok := p.index[key]; ok {
		return false
	}
	p.index[key] = struct{}{}
	p.files = append(p.files, file)
	return true
}
