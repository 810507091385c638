package tui

import "github.com/slok/comfylaunch/internal/model"

type lineMsg struct {
	line model.Line
}

type backendResultMsg struct {
	op  string
	err error
}

type versionsLoadedMsg struct {
	versions []model.Version
}

type versionActivatedMsg struct {
	ref string
}

type diagnosisMsg struct {
	text string
	err  error
}

type browserOpenedMsg struct {
	url string
	err error
}
