package vcs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/vcs"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func refs(vs []model.Version) []string {
	var rs []string
	for _, v := range vs {
		rs = append(rs, v.Ref)
	}
	return rs
}

func TestSortVersions(t *testing.T) {
	tests := map[string]struct {
		versions []model.Version
		expRefs  []string
	}{
		"Tags should go before commits.": {
			versions: []model.Version{
				{Ref: "abc12345", Kind: model.VersionKindCommit, Date: day(20)},
				{Ref: "v0.1.0", Kind: model.VersionKindTag, Date: day(1)},
			},
			expRefs: []string{"v0.1.0", "abc12345"},
		},

		"Tags should be sorted by semantic version, not lexically nor by date.": {
			versions: []model.Version{
				{Ref: "v0.3.9", Kind: model.VersionKindTag, Date: day(9)},
				{Ref: "v0.3.10", Kind: model.VersionKindTag, Date: day(2)},
				{Ref: "v0.10.0", Kind: model.VersionKindTag, Date: day(1)},
				{Ref: "v0.3.10-rc1", Kind: model.VersionKindTag, Date: day(8)},
			},
			expRefs: []string{"v0.10.0", "v0.3.10", "v0.3.10-rc1", "v0.3.9"},
		},

		"Tags without the v prefix should be understood.": {
			versions: []model.Version{
				{Ref: "0.2.0", Kind: model.VersionKindTag, Date: day(1)},
				{Ref: "v0.11.0", Kind: model.VersionKindTag, Date: day(1)},
				{Ref: "1.0", Kind: model.VersionKindTag, Date: day(1)},
			},
			expRefs: []string{"1.0", "v0.11.0", "0.2.0"},
		},

		"Non semantic tags should go after semantic ones, by date.": {
			versions: []model.Version{
				{Ref: "latest", Kind: model.VersionKindTag, Date: day(3)},
				{Ref: "nightly", Kind: model.VersionKindTag, Date: day(5)},
				{Ref: "v0.0.1", Kind: model.VersionKindTag, Date: day(1)},
			},
			expRefs: []string{"v0.0.1", "nightly", "latest"},
		},

		"Commits should be sorted by date, newest first.": {
			versions: []model.Version{
				{Ref: "aaaaaaaa", Kind: model.VersionKindCommit, Date: day(1)},
				{Ref: "bbbbbbbb", Kind: model.VersionKindCommit, Date: day(3)},
				{Ref: "cccccccc", Kind: model.VersionKindCommit, Date: day(2)},
			},
			expRefs: []string{"bbbbbbbb", "cccccccc", "aaaaaaaa"},
		},

		"Ties should be broken by ref name.": {
			versions: []model.Version{
				{Ref: "zzzzzzzz", Kind: model.VersionKindCommit, Date: day(1)},
				{Ref: "aaaaaaaa", Kind: model.VersionKindCommit, Date: day(1)},
				{Ref: "release-b", Kind: model.VersionKindTag, Date: day(1)},
				{Ref: "release-a", Kind: model.VersionKindTag, Date: day(1)},
			},
			expRefs: []string{"release-a", "release-b", "aaaaaaaa", "zzzzzzzz"},
		},

		"Empty lists should be fine.": {
			versions: nil,
			expRefs:  nil,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			vcs.SortVersions(test.versions)
			assert.Equal(t, test.expRefs, refs(test.versions))
		})
	}
}
