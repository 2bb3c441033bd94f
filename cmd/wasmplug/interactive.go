package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-plugins/host"
	"github.com/wippyai/wasm-plugins/plugin"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	unitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	ctx      context.Context
	err      error
	plugin   *plugin.Plugin
	category map[string]string
	result   string
	output   string
	funcs    []funcInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type callResultMsg struct {
	err    error
	result string
	output string
}

func newInteractiveModel(ctx context.Context, pl *plugin.Plugin, funcs []funcInfo) *interactiveModel {
	category := make(map[string]string)
	for _, s := range pl.Classification.Selections() {
		category[s.Unit.Name()] = s.Category
	}
	return &interactiveModel{
		ctx:      ctx,
		plugin:   pl,
		category: category,
		funcs:    funcs,
		state:    stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.output = msg.output
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.result = ""
	m.output = ""
	m.err = nil
	m.inputs = nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	f := m.funcs[m.selected]
	args := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := convertArg(input.Value(), f.params[i].witType)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", f.params[i].name, err)}
		}
		args[i] = v
	}

	u, err := m.plugin.Loader.Load(m.ctx, f.unit)
	if err != nil {
		return callResultMsg{err: err}
	}
	var out bytes.Buffer
	res, err := u.Call(host.WithOutput(m.ctx, &out), f.name, args...)
	if err != nil {
		return callResultMsg{err: err, output: out.String()}
	}
	return callResultMsg{result: formatResults(res, f.results), output: out.String()}
}

// convertArg encodes a text argument as the core value of t.
func convertArg(value string, t wit.Type) (uint64, error) {
	value = strings.TrimSpace(value)
	switch t.(type) {
	case wit.S64:
		v, err := strconv.ParseInt(value, 0, 64)
		return uint64(v), err
	case wit.F32:
		v, err := strconv.ParseFloat(value, 32)
		return api.EncodeF32(float32(v)), err
	case wit.F64:
		v, err := strconv.ParseFloat(value, 64)
		return api.EncodeF64(v), err
	default:
		v, err := strconv.ParseInt(value, 0, 32)
		if err != nil {
			u, uerr := strconv.ParseUint(value, 0, 32)
			if uerr != nil {
				return 0, err
			}
			return uint64(uint32(u)), nil
		}
		return api.EncodeI32(int32(v)), nil
	}
}

func formatResults(res []uint64, types []api.ValueType) string {
	if len(res) == 0 {
		return "(no result)"
	}
	parts := make([]string, len(res))
	for i, r := range res {
		vt := api.ValueTypeI32
		if i < len(types) {
			vt = types[i]
		}
		switch vt {
		case api.ValueTypeI64:
			parts[i] = strconv.FormatInt(int64(r), 10)
		case api.ValueTypeF32:
			parts[i] = strconv.FormatFloat(float64(math.Float32frombits(uint32(r))), 'g', -1, 32)
		case api.ValueTypeF64:
			parts[i] = strconv.FormatFloat(api.DecodeF64(r), 'g', -1, 64)
		default:
			parts[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
		}
	}
	return strings.Join(parts, ", ")
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	d := m.plugin.Descriptor
	b.WriteString(titleStyle.Render("wasmplug"))
	b.WriteString(fmt.Sprintf(" %s %s\n\n", d.Name, d.Version))

	if len(m.funcs) == 0 {
		b.WriteString("No exported functions.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			line := m.formatFunc(f)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s.%s\n\n", unitStyle.Render(f.unit), funcStyle.Render(f.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.params[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s.%s:\n\n", unitStyle.Render(f.unit), funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		if m.output != "" {
			b.WriteString("\n\nOutput:\n")
			b.WriteString(m.output)
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f funcInfo) string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+typeStyle.Render(p.typeStr))
	}
	result := ""
	if f.resultType != "" {
		result = " -> " + typeStyle.Render(f.resultType)
	}
	s := unitStyle.Render(f.unit) + "." + funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
	if cat := m.category[f.unit]; cat != "" {
		s += " " + helpStyle.Render("["+cat+"]")
	}
	return s
}

func runInteractive(ctx context.Context, pl *plugin.Plugin, funcs []funcInfo) error {
	p := tea.NewProgram(newInteractiveModel(ctx, pl, funcs), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
