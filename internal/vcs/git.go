package vcs

import (
	"context"

	"github.com/slok/comfylaunch/internal/model"
)

// Git is the set of git operations the launcher use cases need.
type Git interface {
	Status(ctx context.Context, dir string) (string, error)
	Fetch(ctx context.Context, dir string) error
	Checkout(ctx context.Context, dir, ref string) error
	RemoteGetURL(ctx context.Context, dir, remote string) (string, error)
	RemoteSetURL(ctx context.Context, dir, remote, url string) error
	SubmoduleUpdate(ctx context.Context, dir string) error
	Describe(ctx context.Context, dir string) (string, error)
	RevParse(ctx context.Context, dir, ref string) (string, error)
	UpstreamBranch(ctx context.Context, dir string) (string, error)
	Clone(ctx context.Context, url, dest string) error
	Pull(ctx context.Context, dir string) error
	Versions(ctx context.Context, dir string, commits int) ([]model.Version, error)
}

var _ Git = &Runner{}
