// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package banner renders a snapshot as a login banner.
package banner

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

const (
	// DefaultWidth is the width of the section rules.
	DefaultWidth = 72

	keyWidth = 15
	barWidth = 30

	borderChar = "+"
	timeLayout = "Jan 02 15:04:05 2006 MST"
)

// Options controls banner rendering.
type Options struct {
	// Color enables ANSI colors regardless of the output device.
	Color bool
	Width int

	// Username is shown under User Data; empty renders as unknown.
	Username string
	// MaxProcesses is the per-user process limit. Zero means unlimited.
	MaxProcesses uint64

	// Now anchors the relative uptime. Zero uses the snapshot time.
	Now time.Time
	// Location is used for timestamps. Nil means time.Local.
	Location *time.Location
}

type styles struct {
	border lipgloss.Style
	key    lipgloss.Style
	value  lipgloss.Style
	bar    lipgloss.Style
	header lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		border: r.NewStyle().Foreground(lipgloss.Color("5")),
		key:    r.NewStyle().Foreground(lipgloss.Color("7")),
		value:  r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		bar:    r.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
		header: r.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("5")).
			Foreground(lipgloss.Color("7")).
			Bold(true).
			Padding(0, 2),
	}
}

type message struct {
	b     strings.Builder
	s     styles
	width int
}

func (m *message) line(key, value string) {
	fmt.Fprintf(&m.b, "%s%s %s %s\n",
		m.s.border.Render(borderChar+"  "),
		m.s.key.Render(fmt.Sprintf("%-*s", keyWidth, key)),
		m.s.border.Render("="),
		m.s.value.Render(value))
}

// rawLine is like line but keeps value's own styling.
func (m *message) rawLine(key, value string) {
	fmt.Fprintf(&m.b, "%s%s %s %s\n",
		m.s.border.Render(borderChar+"  "),
		m.s.key.Render(fmt.Sprintf("%-*s", keyWidth, key)),
		m.s.border.Render("="),
		value)
}

func (m *message) separator(title string) {
	if title == "" {
		m.b.WriteString(m.s.border.Render(strings.Repeat(borderChar, m.width)))
		m.b.WriteByte('\n')
		return
	}

	left, right := ruleSides(m.width, len(title))
	m.b.WriteString(m.s.border.Render(strings.Repeat(borderChar, left) + "[ "))
	m.b.WriteString(m.s.key.Render(title))
	m.b.WriteString(m.s.border.Render(" ]" + strings.Repeat(borderChar, right)))
	m.b.WriteByte('\n')
}

// ruleSides splits the border characters around a "[ title ]" label so the
// rule spans width columns.
func ruleSides(width, titleLen int) (left, right int) {
	rest := width - titleLen - 4
	if rest < 0 {
		return 0, 0
	}
	left = rest / 2
	return left, rest - left
}

// Render writes the banner for snap to w.
func Render(w io.Writer, snap *sysinfo.Snapshot, opts Options) error {
	_, err := io.WriteString(w, String(snap, opts))
	return err
}

// String renders the banner for snap.
func String(snap *sysinfo.Snapshot, opts Options) string {
	r := lipgloss.NewRenderer(io.Discard)
	if opts.Color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = snap.CurrentTime
	}

	m := &message{s: newStyles(r), width: opts.Width}

	m.b.WriteString(m.s.header.Render(clean(sysinfo.OrUnknown(snap.Hostname))))
	m.b.WriteString("\n\n")

	m.separator("System Data")
	m.line("Hostname", clean(sysinfo.OrUnknown(snap.Hostname)))
	m.line("Address", PrimaryAddress(snap))
	m.line("Kernel", kernelString(snap.Kernel))
	m.line("Uptime", uptimeString(snap.BootTime, opts))
	m.line("CPU", clean(sysinfo.OrUnknown(snap.CPU.Model)))
	m.line("CPU usage", fmt.Sprintf("%d %%", snap.CPU.Utilization))
	m.line("Load Avg.", fmt.Sprintf("%.2f %.2f %.2f", snap.Load.Load1, snap.Load.Load5, snap.Load.Load15))
	m.rawLine("Memory", memoryString(m.s, snap.Memory))

	m.separator("Distribution")
	m.line("Name", clean(sysinfo.OrUnknown(snap.Distro.ID)))
	m.line("Description", clean(sysinfo.OrUnknown(snap.Distro.Description)))
	m.line("Release", clean(sysinfo.OrUnknown(snap.Distro.Release)))
	m.line("Version", clean(sysinfo.OrUnknown(snap.Distro.Version)))

	m.separator("Storage")
	for mount := range snap.AllMounts() {
		if !mount.IsLocal || mount.IsSpecial {
			continue
		}
		m.line(clean(mount.MountPoint), storageString(mount))
	}

	m.separator("Network")
	for iface := range snap.AllInterfaces() {
		if iface.Loopback {
			continue
		}
		m.line(clean(iface.Name), interfaceString(iface))
	}

	m.separator("User Data")
	m.line("Username", clean(sysinfo.OrUnknown(opts.Username)))
	m.line("Processes", processString(snap.Processes.Total, opts.MaxProcesses))
	m.separator("")

	if !opts.Color {
		return ansi.Strip(m.b.String())
	}
	return m.b.String()
}

// PrimaryAddress returns the IPv4 address of the first interface that is up
// and not a loopback.
func PrimaryAddress(snap *sysinfo.Snapshot) string {
	for iface := range snap.AllInterfaces() {
		if iface.Up && !iface.Loopback && iface.IPv4 != "" {
			return iface.IPv4
		}
	}
	return sysinfo.Unknown
}

func kernelString(k sysinfo.KernelInfo) string {
	if k.Release == "" && k.Version == "" {
		return sysinfo.Unknown
	}
	s := strings.TrimSpace(clean(k.Release + " " + k.Version))
	if k.IsTainted() {
		s += fmt.Sprintf(" (tainted: %d)", k.Tainted)
	}
	return s
}

func uptimeString(boot time.Time, opts Options) string {
	if boot.IsZero() {
		return sysinfo.Unknown
	}
	stamp := boot.In(opts.Location).Format(timeLayout)
	if boot.Equal(opts.Now) {
		return stamp + " (now)"
	}
	return fmt.Sprintf("%s (%s)", stamp, humanize.RelTime(boot, opts.Now, "ago", "from now"))
}

func memoryString(s styles, mem sysinfo.MemoryInfo) string {
	pct := mem.UsedPercent()
	used := s.value.Render(fmt.Sprintf("%.2f%% used", pct))
	return fmt.Sprintf("%s %s", progressBar(s, pct, barWidth), used)
}

// progressBar renders "[###   ]" with length cells between the brackets.
func progressBar(s styles, pct float64, length int) string {
	filled := 0
	if !math.IsNaN(pct) && pct > 0 {
		filled = int(math.Floor(pct / 100 * float64(length)))
	}
	filled = min(max(filled, 0), length)

	return s.border.Render("[") +
		s.bar.Render(strings.Repeat("#", filled)+strings.Repeat(" ", length-filled)) +
		s.border.Render("]")
}

func storageString(m sysinfo.MountEntry) string {
	var pct float64
	if m.SpaceTotal > 0 {
		pct = float64(m.SpaceUsed) * 100 / float64(m.SpaceTotal)
	}
	return fmt.Sprintf("%s of %s (%.2f%% used) %s",
		humanize.IBytes(m.SpaceUsed), humanize.IBytes(m.SpaceTotal), pct,
		clean(sysinfo.OrUnknown(m.FSType)))
}

func interfaceString(iface sysinfo.InterfaceEntry) string {
	addr := iface.IPv4
	if addr == "" {
		addr = iface.IPv6
	}
	state := "down"
	if iface.Up {
		state = "up"
	}
	return fmt.Sprintf("%s (%s) TX %s RX %s",
		clean(sysinfo.OrUnknown(addr)), state,
		humanize.IBytes(iface.TxBytes), humanize.IBytes(iface.RxBytes))
}

func processString(total, limit uint64) string {
	ceiling := "unlimited"
	if limit > 0 {
		ceiling = humanize.Comma(int64(min(limit, math.MaxInt64)))
	}
	return fmt.Sprintf("%s of %s MAX", humanize.Comma(int64(min(total, math.MaxInt64))), ceiling)
}

// clean drops terminal escape sequences from host-provided strings.
func clean(s string) string {
	return ansi.Strip(s)
}
