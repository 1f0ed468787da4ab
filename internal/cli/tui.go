package cli

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/busweaver/busweaver/pkg/report"
	"github.com/busweaver/busweaver/pkg/topology"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)

	bitUsedStyle = lipgloss.NewStyle().Foreground(colorCyan)
	bitFreeStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// Frame rows - view data assembled from system and report
// =============================================================================

// signalPlacement is one signal inside a PDU, for the layout view.
type signalPlacement struct {
	Signal        string
	StartPosition int
	ByteOrder     string
	BitLength     int
}

// pduPlacement is one PDU inside a frame, for the layout view.
type pduPlacement struct {
	PDU           string
	StartPosition int
	ByteOrder     string
	UpdateBit     *int
	Signals       []signalPlacement
}

// frameRow is the explore view of one frame: its identity, mapped PDUs
// and the decoded occupancy bitmap from the consistency report.
type frameRow struct {
	Name        string
	Kind        string
	ByteLength  int
	Triggerings int
	UsedBits    int
	Coverage    []byte
	PDUs        []pduPlacement
}

// buildFrameRows assembles the explore rows from a built system and its
// report, sorted by frame name for a stable listing.
func buildFrameRows(sys *topology.System, rep *report.Report) []frameRow {
	coverage := make(map[string][]byte)
	used := make(map[string]int)
	for _, l := range rep.Layouts {
		if l.Kind != "frame" {
			continue
		}
		if bytes, err := hex.DecodeString(l.Coverage); err == nil {
			coverage[l.Name] = bytes
		}
		used[l.Name] = l.UsedBits
	}

	rows := make([]frameRow, 0, len(sys.Frames))
	for name, frame := range sys.Frames {
		row := frameRow{
			Name:        name,
			Kind:        string(frame.Kind),
			ByteLength:  frame.ByteLength,
			Triggerings: len(frame.TriggeringRefs),
			UsedBits:    used[name],
			Coverage:    coverage[name],
		}
		for _, pm := range frame.PDUMappings {
			placement := pduPlacement{
				PDU:           pm.PDURef,
				StartPosition: pm.StartPosition,
				ByteOrder:     string(pm.ByteOrder),
				UpdateBit:     pm.UpdateBit,
			}
			if pdu, ok := sys.PDUs[pm.PDURef]; ok {
				for _, sm := range pdu.SignalMappings {
					if sm.SignalRef == "" {
						continue // group mappings carry no position
					}
					placement.Signals = append(placement.Signals, signalPlacement{
						Signal:        sm.SignalRef,
						StartPosition: sm.StartPosition,
						ByteOrder:     string(sm.ByteOrder),
						BitLength:     signalBits(sys, sm.SignalRef),
					})
				}
			}
			row.PDUs = append(row.PDUs, placement)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func signalBits(sys *topology.System, name string) int {
	if sig, ok := sys.Signals[name]; ok {
		return sig.BitLength
	}
	return 0
}

// =============================================================================
// FrameListModel - Interactive frame selection
// =============================================================================

// FrameListModel is the bubbletea model for browsing the frames of a system.
type FrameListModel struct {
	System   string
	Frames   []frameRow
	Cursor   int
	Selected *frameRow
	Height   int
	Offset   int
}

// NewFrameListModel creates a new frame list model.
func NewFrameListModel(system string, frames []frameRow) FrameListModel {
	return FrameListModel{
		System: system,
		Frames: frames,
		Height: 15,
	}
}

func (m FrameListModel) Init() tea.Cmd {
	return nil
}

func (m FrameListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Frames)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			m.Selected = &m.Frames[m.Cursor]
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m FrameListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Frames of " + m.System))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ layout  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Frames) {
		end = len(m.Frames)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		f := m.Frames[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		pdus := "—"
		if len(f.PDUs) > 0 {
			names := make([]string, len(f.PDUs))
			for j, p := range f.PDUs {
				names[j] = p.PDU
			}
			pdus = strings.Join(names, ", ")
		}

		occupancy := fmt.Sprintf("%d/%d", f.UsedBits, f.ByteLength*8)
		rows = append(rows, []string{
			cursor, f.Name, f.Kind,
			fmt.Sprintf("%d B", f.ByteLength),
			fmt.Sprintf("%d", f.Triggerings),
			occupancy, pdus,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Frame", "Bus", "Length", "Trig", "Bits", "PDUs").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			actualIdx := m.Offset + row
			if actualIdx >= len(m.Frames) {
				return lipgloss.NewStyle()
			}
			f := m.Frames[actualIdx]
			mapped := len(f.PDUs) > 0
			isCurrent := actualIdx == m.Cursor

			base := lipgloss.NewStyle()
			if isCurrent {
				if mapped {
					return base.Foreground(colorGreen).Bold(true)
				}
				return base.Foreground(colorDim).Bold(true)
			}
			if mapped {
				return base.Foreground(colorWhite)
			}
			return base.Foreground(colorDim)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Frames))))

	return b.String()
}

// =============================================================================
// FrameLayoutModel - Bit occupancy of one frame
// =============================================================================

// FrameLayoutModel is the bubbletea model showing the bit layout of a frame.
type FrameLayoutModel struct {
	Frame frameRow
	Back  bool
}

// NewFrameLayoutModel creates a layout view for the given frame.
func NewFrameLayoutModel(frame frameRow) FrameLayoutModel {
	return FrameLayoutModel{Frame: frame}
}

func (m FrameLayoutModel) Init() tea.Cmd {
	return nil
}

func (m FrameLayoutModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "backspace":
			m.Back = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m FrameLayoutModel) View() string {
	f := m.Frame
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Frame %s", f.Name)))
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  (%s, %d bytes)", f.Kind, f.ByteLength)))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("esc back  q quit"))
	b.WriteString("\n\n")

	b.WriteString(renderBitGrid(f.Coverage, f.ByteLength))

	b.WriteString("\n")
	if len(f.PDUs) == 0 {
		b.WriteString(listDimStyle.Render("  no PDUs mapped"))
		b.WriteString("\n")
	}
	for _, p := range f.PDUs {
		line := fmt.Sprintf("  %s %s @ bit %d, %s",
			iconInfo, p.PDU, p.StartPosition, p.ByteOrder)
		if p.UpdateBit != nil {
			line += fmt.Sprintf(", update bit %d", *p.UpdateBit)
		}
		b.WriteString(StyleValue.Render(line))
		b.WriteString("\n")
		for _, s := range p.Signals {
			b.WriteString(listDimStyle.Render(fmt.Sprintf("      %s @ bit %d, %d bits, %s",
				s.Signal, s.StartPosition, s.BitLength, s.ByteOrder)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d/%d bits used", f.UsedBits, f.ByteLength*8)))

	return b.String()
}

// renderBitGrid draws the occupancy bitmap as one row per byte, most
// significant bit first, matching how DBC and ARXML tools draw layouts.
func renderBitGrid(coverage []byte, byteLength int) string {
	var b strings.Builder

	b.WriteString(listDimStyle.Render("          7 6 5 4 3 2 1 0"))
	b.WriteString("\n")

	for i := 0; i < byteLength; i++ {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  byte %2d ", i)))
		var covByte byte
		if i < len(coverage) {
			covByte = coverage[i]
		}
		for bit := 7; bit >= 0; bit-- {
			if covByte&(1<<bit) != 0 {
				b.WriteString(bitUsedStyle.Render("█ "))
			} else {
				b.WriteString(bitFreeStyle.Render("· "))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
