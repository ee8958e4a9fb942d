// Command retune_ui is a terminal tuner over the live correction
// pipeline: it captures the default input device, corrects it to the
// output device, and renders the detected note, cents deviation and
// engine health in a TUI.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gordonklaus/portaudio"

	"github.com/cbegin/retune-go"
)

// CLI defines the command-line interface.
type CLI struct {
	SampleRate int    `default:"44100" help:"Sample rate in Hz"`
	Scale      string `default:"major" help:"Initial scale"`
	Key        int    `default:"60" help:"Key center as a MIDI note"`
	Config     string `help:"YAML parameter file" type:"existingfile" optional:""`
}

var scaleCycle = []retune.Scale{
	retune.ScaleChromatic, retune.ScaleMajor, retune.ScaleMinor,
	retune.ScalePentatonic, retune.ScaleBlues, retune.ScaleDorian,
	retune.ScaleMixolydian,
}

var modeCycle = []retune.Mode{
	retune.ModeFullAutotune, retune.ModePitchCorrection,
	retune.ModeQuantization, retune.ModeBypass,
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).Padding(0, 1)
	noteStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("#4ADE80")).Padding(0, 1)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))
	meterInStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))
	meterOutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).Padding(1, 2)
)

// resultMsg carries one processed block's report into the UI.
type resultMsg retune.Result

type model struct {
	engine  *retune.Engine
	results <-chan retune.Result

	last     retune.Result
	note     retune.Note
	scaleIdx int
	modeIdx  int
	strength float64
	err      error
}

func (m model) Init() tea.Cmd {
	return waitForResult(m.results)
}

func waitForResult(ch <-chan retune.Result) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-ch)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			m.scaleIdx = (m.scaleIdx + 1) % len(scaleCycle)
			m.engine.SetScale(scaleCycle[m.scaleIdx], m.engine.Params().KeyCenter)
		case "m":
			m.modeIdx = (m.modeIdx + 1) % len(modeCycle)
			m.engine.SetMode(modeCycle[m.modeIdx])
		case "up":
			m.strength = clamp(m.strength+0.05, 0, 1)
			m.applyStrength()
		case "down":
			m.strength = clamp(m.strength-0.05, 0, 1)
			m.applyStrength()
		}
		return m, nil

	case resultMsg:
		m.last = retune.Result(msg)
		if m.last.DetectedPitchHz > 0 {
			m.note = m.engine.NearestNote(m.last.DetectedPitchHz)
		}
		return m, waitForResult(m.results)

	case error:
		m.err = msg
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) applyStrength() {
	p := m.engine.Params()
	p.CorrectionStrength = m.strength
	p.QuantizeStrength = m.strength
	m.engine.SetParameters(p)
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("retune") + "\n\n")

	if m.last.DetectedPitchHz > 0 {
		b.WriteString(fmt.Sprintf("%s  %s\n",
			noteStyle.Render(noteName(m.note.MIDINote)),
			dimStyle.Render(fmt.Sprintf("%.1f Hz -> %.1f Hz", m.last.DetectedPitchHz, m.last.CorrectedPitchHz))))
		b.WriteString(centsMeter(m.note.Cents) + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("confidence %.2f  latency %d smp",
			m.last.Confidence, m.last.LatencySamples)) + "\n")
	} else {
		b.WriteString(noteStyle.Render("--") + "  " + dimStyle.Render("no pitch") + "\n")
		b.WriteString(centsMeter(0) + "\n\n")
	}

	metrics := m.engine.PerformanceMetrics()
	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf(
		"mode %s  scale %s  strength %.2f  |  %.2f ms/block  %.1f%% cpu",
		modeCycle[m.modeIdx], scaleCycle[m.scaleIdx], m.strength,
		metrics.AverageLatencyMS, metrics.CPUUsagePercent)) + "\n")
	b.WriteString(dimStyle.Render("s: scale  m: mode  up/down: strength  q: quit"))
	return boxStyle.Render(b.String())
}

// centsMeter draws a 41-cell meter spanning -50..+50 cents with the
// needle at the input's deviation from the quantized note.
func centsMeter(cents float64) string {
	const cells = 41
	pos := int((clamp(cents, -50, 50) + 50) / 100 * (cells - 1))
	var b strings.Builder
	for i := 0; i < cells; i++ {
		switch {
		case i == cells/2 && i == pos:
			b.WriteString(meterInStyle.Render("┃"))
		case i == pos:
			b.WriteString(meterOutStyle.Render("▼"))
		case i == cells/2:
			b.WriteString(dimStyle.Render("┊"))
		default:
			b.WriteString(dimStyle.Render("·"))
		}
	}
	return b.String()
}

func noteName(midi int) string {
	if midi < 0 {
		return "--"
	}
	return fmt.Sprintf("%s%d", noteNames[midi%12], midi/12-1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("retune_ui"),
		kong.Description("Terminal tuner over the live pitch-correction pipeline"),
		kong.UsageOnError(),
	)

	var params retune.Params
	var err error
	if cli.Config != "" {
		params, err = retune.LoadParams(cli.Config)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		params = retune.DefaultParams(cli.SampleRate)
		params.Scale = retune.Scale(strings.ToLower(cli.Scale))
		params.KeyCenter = cli.Key
	}
	params.Channels = 1

	engine, err := retune.NewWithParams(params)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	stream, err := portaudio.OpenDefaultStream(1, 1, float64(params.SampleRate), params.BufferSize,
		func(in, out []float32) {
			engine.Feed(in, len(in))
			n := engine.Drain(out, len(out))
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
		})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer stream.Close()

	results := make(chan retune.Result, 16)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-quit:
				return
			default:
			}
			res, ok := engine.ProcessPending()
			if !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			select {
			case results <- res:
			default:
				// UI is behind; drop the report, keep the audio moving
			}
		}
	}()

	if err := stream.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	initialScale, initialMode := 0, 0
	for i, s := range scaleCycle {
		if s == params.Scale {
			initialScale = i
		}
	}
	for i, md := range modeCycle {
		if md == params.Mode {
			initialMode = i
		}
	}
	m := model{
		engine:   engine,
		results:  results,
		scaleIdx: initialScale,
		modeIdx:  initialMode,
		strength: params.CorrectionStrength,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	close(quit)
	stream.Stop()
}
