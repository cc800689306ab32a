package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ytdrop/internal/models"
)

var _ list.Item = failureItem{}

// failureItem wraps a failed [models.TrackResult] to implement [list.Item].
type failureItem struct {
	result models.TrackResult
}

func (i failureItem) FilterValue() string { return i.result.Track.Query() }
func (i failureItem) Title() string       { return i.result.Track.Query() }
func (i failureItem) Description() string {
	return fmt.Sprintf("%s • %s", i.result.Playlist, i.result.ReasonText())
}

func failureItems(report *models.Report) []list.Item {
	failures := report.Failures()
	items := make([]list.Item, len(failures))
	for i, res := range failures {
		items[i] = failureItem{result: res}
	}
	return items
}
