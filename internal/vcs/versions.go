package vcs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/slok/comfylaunch/internal/model"
)

const fieldSep = "\x1f"

// Versions lists the tags and the last commits of the repository in dir, sorted with
// SortVersions. The checked out one is marked as current.
func (r *Runner) Versions(ctx context.Context, dir string, commits int) ([]model.Version, error) {
	head, err := r.RevParse(ctx, dir, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("could not resolve HEAD: %w", err)
	}

	tags, err := r.output(ctx, dir, QueryTimeout, "for-each-ref", "refs/tags",
		"--format=%(refname:short)%1f%(creatordate:iso-strict)%1f%(objectname)%1f%(*objectname)%1f%(contents:subject)")
	if err != nil {
		return nil, fmt.Errorf("could not list tags: %w", err)
	}

	var vs []model.Version
	for _, line := range splitLines(tags) {
		f := strings.Split(line, fieldSep)
		if len(f) < 4 {
			continue
		}
		commit := f[2]
		// Annotated tags point to a tag object, the commit is the peeled one.
		if f[3] != "" {
			commit = f[3]
		}
		v := model.Version{
			Ref:     f[0],
			Kind:    model.VersionKindTag,
			Commit:  commit,
			Date:    parseDate(f[1]),
			Current: commit == head,
		}
		if len(f) > 4 {
			v.Subject = f[4]
		}
		vs = append(vs, v)
	}

	if commits > 0 {
		log, err := r.output(ctx, dir, QueryTimeout, "log", fmt.Sprintf("-n%d", commits), "--format=%H%x1f%cI%x1f%s")
		if err != nil {
			return nil, fmt.Errorf("could not list commits: %w", err)
		}
		for _, line := range splitLines(log) {
			f := strings.SplitN(line, fieldSep, 3)
			if len(f) < 3 {
				continue
			}
			vs = append(vs, model.Version{
				Ref:     shortHash(f[0]),
				Kind:    model.VersionKindCommit,
				Commit:  f[0],
				Date:    parseDate(f[1]),
				Subject: f[2],
				Current: f[0] == head,
			})
		}
	}

	SortVersions(vs)
	return vs, nil
}

// SortVersions sorts versions in place: tags before commits, tags by semantic version
// descending with the non semantic ones after them by date, commits by date descending.
// Ties are broken by ref name.
func SortVersions(vs []model.Version) {
	sort.SliceStable(vs, func(i, j int) bool { return versionLess(vs[i], vs[j]) })
}

func versionLess(a, b model.Version) bool {
	if a.Kind != b.Kind {
		return a.Kind == model.VersionKindTag
	}

	if a.Kind == model.VersionKindTag {
		sa, aok := canonicalSemver(a.Ref)
		sb, bok := canonicalSemver(b.Ref)
		switch {
		case aok && !bok:
			return true
		case !aok && bok:
			return false
		case aok && bok:
			if c := semver.Compare(sa, sb); c != 0 {
				return c > 0
			}
		}
	}

	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.Ref < b.Ref
}

// canonicalSemver returns the ref as a semantic version accepting a missing "v" prefix.
func canonicalSemver(ref string) (string, bool) {
	v := ref
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}

func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
