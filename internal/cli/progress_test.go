package cli

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogInfo)

	sink := logSink{logger: logger}
	sink.Report(45, "tessellated 12 cells")

	out := buf.String()
	if !strings.Contains(out, "tessellated 12 cells") {
		t.Errorf("output %q should contain the message", out)
	}
	if !strings.Contains(out, "45") {
		t.Errorf("output %q should contain the percent", out)
	}
	if sink.Cancelled() {
		t.Error("logSink is never cancelled")
	}
}

func TestProgressModelCancelKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			var cancelled atomic.Bool
			m := progressModel{cancelled: &cancelled}

			var msg tea.KeyMsg
			switch key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			default:
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}
			m.Update(msg)

			if !cancelled.Load() {
				t.Errorf("key %q should set the cancel flag", key)
			}
		})
	}
}

func TestProgressModelUpdatesAndQuits(t *testing.T) {
	var cancelled atomic.Bool
	m := progressModel{cancelled: &cancelled}

	updated, _ := m.Update(progressMsg{percent: 60, message: "subtracted reserve"})
	pm := updated.(progressModel)
	if pm.percent != 60 || pm.message != "subtracted reserve" {
		t.Errorf("model = %d %q, want 60 %q", pm.percent, pm.message, "subtracted reserve")
	}

	_, cmd := pm.Update(runDoneMsg{})
	if cmd == nil {
		t.Fatal("runDoneMsg should produce a quit command")
	}
}

func TestProgressModelView(t *testing.T) {
	var cancelled atomic.Bool
	m := progressModel{percent: 50, message: "buffered road reserve", cancelled: &cancelled}

	view := m.View()
	if !strings.Contains(view, "buffered road reserve") {
		t.Errorf("view %q should contain the stage message", view)
	}
	if !strings.Contains(view, "q cancel") {
		t.Errorf("view %q should show the cancel hint", view)
	}
}
