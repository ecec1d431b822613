package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"binup/internal/paths"
	"binup/internal/tools"
)

// Column headers of the tool progress table.
const (
	ColTool    = "TOOL"
	ColStatus  = "STATUS"
	ColVersion = "VERSION"
	ColDetail  = "DETAIL"
)

// progressInterval throttles download progress updates.
const progressInterval = 100 * time.Millisecond

// ToolColumns returns the columns of the tool progress table.
func ToolColumns() []Column {
	return []Column{
		{Header: ColTool, Width: 16},
		{Header: ColStatus, Width: 11},
		{Header: ColVersion, Width: 18},
		{Header: ColDetail, Width: 48},
	}
}

// NewToolModel builds a progress model with one pending row per tool.
func NewToolModel(title string, names []string) ProgressModel {
	m := NewProgressModel(title, ToolColumns())
	for _, name := range names {
		m.AddRow(name, []string{name, statusPending, "", ""})
	}
	return m
}

// ToolReporter adapts bubbletea message sending to tools.Reporter.
type ToolReporter struct {
	send     func(tea.Msg)
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewToolReporter returns a reporter that sends row updates through send.
func NewToolReporter(send func(tea.Msg)) *ToolReporter {
	return &ToolReporter{send: send, lastSent: map[string]time.Time{}, now: time.Now}
}

func (r *ToolReporter) Start(tool string) {
	r.update(tool, map[string]string{ColStatus: string(tools.StateUninstalled), ColDetail: "checking"})
}

func (r *ToolReporter) Stage(tool string, state tools.State, detail string) {
	r.update(tool, map[string]string{ColStatus: string(state), ColDetail: detail})
}

func (r *ToolReporter) Progress(tool string, done, total int64) {
	now := r.now()
	if done < total && now.Sub(r.lastSent[tool]) < progressInterval {
		return
	}
	r.lastSent[tool] = now
	r.update(tool, map[string]string{ColDetail: DownloadProgress(done, total)})
}

func (r *ToolReporter) Done(res tools.Result) {
	r.update(res.Tool, ResultFields(res))
}

func (r *ToolReporter) update(tool string, fields map[string]string) {
	r.send(RowUpdateMsg{Key: tool, Fields: fields})
}

// DownloadProgress renders transferred bytes, with the total when known.
func DownloadProgress(done, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("downloaded %s", humanize.Bytes(uint64(done)))
	}
	return fmt.Sprintf("downloaded %s / %s", humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
}

// ResultFields renders the final row of a tool.
func ResultFields(res tools.Result) map[string]string {
	fields := map[string]string{
		ColStatus:  string(res.Outcome),
		ColVersion: NonEmptyOrDash(resultVersion(res)),
	}
	switch {
	case res.Err != nil:
		fields[ColDetail] = res.Err.Error()
	case res.Warning != nil:
		fields[ColStatus] = "warning"
		fields[ColDetail] = "post-install command failed"
	case res.Changed():
		fields[ColDetail] = paths.Shorten(res.Path)
	default:
		fields[ColDetail] = ""
	}
	return fields
}

func resultVersion(res tools.Result) string {
	switch {
	case res.Changed():
		return res.Target.String()
	case res.InstalledVersion() != "":
		return res.InstalledVersion()
	default:
		return res.Target.String()
	}
}
