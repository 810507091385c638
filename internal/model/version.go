package model

import "time"

// VersionKind is the kind of git reference a version points to.
type VersionKind string

const (
	VersionKindTag    VersionKind = "tag"
	VersionKindCommit VersionKind = "commit"
)

// Version is an installable version of the backend.
type Version struct {
	Ref     string
	Kind    VersionKind
	Commit  string
	Date    time.Time
	Subject string
	Current bool
}

// Node is an installed custom node.
type Node struct {
	Name     string
	Path     string
	Remote   string
	Commit   string
	Upstream string
	Disabled bool
}
