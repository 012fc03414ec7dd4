package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// progressItem tracks one file's transfer progress, keyed by its
// protocol file ID rather than a queue index, since the file ID is what
// each progress sample carries.
type progressItem struct {
	fileID     string
	name       string
	total      int64
	current    int64
	speed      float64
	isComplete bool
	hasError   bool
}

// ProgressModel renders a multi-file transfer as a stack of progress
// bars, fed by internal/transfer.Controller's Progress and Received
// channels.
type ProgressModel struct {
	mu    sync.RWMutex
	order []string
	items map[string]*progressItem
	bars  map[string]progress.Model
	width int
}

// NewProgressModel returns an empty display; files are added with Track
// as they become known (the receiver side learns names one FILE_INFO at
// a time).
func NewProgressModel() *ProgressModel {
	return &ProgressModel{
		items: make(map[string]*progressItem),
		bars:  make(map[string]progress.Model),
		width: 80,
	}
}

// Has reports whether fileID is already tracked.
func (m *ProgressModel) Has(fileID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[fileID]
	return ok
}

// Track registers a file so its bar appears even before the first
// progress sample arrives.
func (m *ProgressModel) Track(fileID, name string, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[fileID]; ok {
		return
	}
	m.order = append(m.order, fileID)
	m.items[fileID] = &progressItem{fileID: fileID, name: name, total: total}
	m.bars[fileID] = progress.New(
		progress.WithGradient(ProgressStart, ProgressEnd),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
}

func (m *ProgressModel) Init() tea.Cmd { return tickCmd() }

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// UpdateProgress applies one throughput sample from a Controller's
// Progress channel.
func (m *ProgressModel) UpdateProgress(fileID string, bytesDone, total int64, bytesPerSec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[fileID]
	if !ok {
		return
	}
	item.current = bytesDone
	if total > 0 {
		item.total = total
	}
	item.speed = bytesPerSec
	if item.total > 0 && item.current >= item.total {
		item.isComplete = true
	}
}

func (m *ProgressModel) MarkComplete(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[fileID]; ok {
		item.isComplete = true
		item.current = item.total
	}
}

func (m *ProgressModel) MarkError(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[fileID]; ok {
		item.hasError = true
	}
}

func (m *ProgressModel) AllComplete() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if !item.isComplete && !item.hasError {
			return false
		}
	}
	return len(m.items) > 0
}

func (m *ProgressModel) Update(msg tea.Msg) (*ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		if !m.AllComplete() {
			return m, tickCmd()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		for id, bar := range m.bars {
			bar.Width = min(30, msg.Width-50)
			m.bars[id] = bar
		}
		m.mu.Unlock()
		return m, nil

	case progress.FrameMsg:
		m.mu.Lock()
		defer m.mu.Unlock()
		var cmds []tea.Cmd
		for id, bar := range m.bars {
			newModel, cmd := bar.Update(msg)
			m.bars[id] = newModel.(progress.Model)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *ProgressModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	for _, id := range m.order {
		item := m.items[id]
		bar := m.bars[id]

		var icon string
		var nameStyle lipgloss.Style
		switch {
		case item.hasError:
			icon, nameStyle = IconError, ErrorStyle
		case item.isComplete:
			icon, nameStyle = IconSuccess, SuccessStyle
		default:
			icon, nameStyle = IconFile, lipgloss.NewStyle()
		}

		name := TruncateString(item.name, 30)
		fmt.Fprintf(&b, "%s %s ", icon, nameStyle.Render(name))

		if item.total > 0 {
			percent := float64(item.current) / float64(item.total)
			b.WriteString(bar.ViewAs(percent))
			fmt.Fprintf(&b, " %5.1f%%", percent*100)
		}

		if !item.isComplete && !item.hasError && item.speed > 0 {
			fmt.Fprintf(&b, " %s", MutedStyle.Render(FormatSpeed(item.speed)))
			remaining := item.total - item.current
			if remaining > 0 {
				eta := float64(remaining) / item.speed
				fmt.Fprintf(&b, " %s", MutedStyle.Render("ETA: "+FormatETA(eta)))
			}
		}

		fmt.Fprintf(&b, " %s\n", MutedStyle.Render(fmt.Sprintf("(%s/%s)", FormatSize(item.current), FormatSize(item.total))))
	}
	return b.String()
}
