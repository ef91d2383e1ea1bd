package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
	"github.com/joseph-ayodele/fichas-scanner/internal/notify"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
)

type fakePipeline struct {
	mu       sync.Mutex
	view     pipeline.View
	startErr error
	starts   int
	stops    int
	process  int
	fills    int
}

func (p *fakePipeline) StartCamera(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	if p.startErr != nil {
		return p.startErr
	}
	p.view.State = pipeline.StateCameraActive
	return nil
}

func (p *fakePipeline) StopCamera() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.view.State = pipeline.StateIdle
	return true
}

func (p *fakePipeline) Process(context.Context) (extract.Record, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.process++
	rec := extract.Record{Nome: "Joao", CPF: "111.222.333-44"}
	p.view.Result = rec
	p.view.HasResult = true
	p.view.State = pipeline.StateIdle
	return rec, true, nil
}

func (p *fakePipeline) FillForm(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills++
	return true, nil
}

func (p *fakePipeline) View() pipeline.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func keyPress(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command synchronously.
func press(t *testing.T, m *Model, k tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(k)
	if cmd == nil {
		return
	}
	msg := cmd()
	_, _ = m.Update(msg)
}

func TestModel_CaptureFlow(t *testing.T) {
	p := &fakePipeline{view: pipeline.View{State: pipeline.StateIdle}}
	m := New(context.Background(), p, nil, nil)

	assert.Contains(t, m.View(), "Câmera desligada")
	assert.Contains(t, m.View(), "c: abrir câmera")

	// capture is ignored while the camera is off
	press(t, m, keyPress(" "))
	assert.Equal(t, 0, p.process)

	press(t, m, keyPress("c"))
	assert.Equal(t, 1, p.starts)
	assert.Equal(t, pipeline.StateCameraActive, m.view.State)
	assert.Contains(t, m.View(), "espaço: capturar")

	press(t, m, keyPress(" "))
	assert.Equal(t, 1, p.process)
	assert.True(t, m.view.HasResult)
	out := m.View()
	assert.Contains(t, out, "Joao")
	assert.Contains(t, out, "111.222.333-44")
	assert.Contains(t, out, "f: preencher formulário")

	press(t, m, keyPress("f"))
	assert.Equal(t, 1, p.fills)
}

func TestModel_FillIgnoredWithoutResult(t *testing.T) {
	p := &fakePipeline{view: pipeline.View{State: pipeline.StateIdle}}
	m := New(context.Background(), p, nil, nil)

	press(t, m, keyPress("f"))
	assert.Equal(t, 0, p.fills)
}

func TestModel_IgnoresKeysWhileBusy(t *testing.T) {
	p := &fakePipeline{view: pipeline.View{State: pipeline.StateCameraActive, Busy: true}}
	m := New(context.Background(), p, nil, nil)

	press(t, m, keyPress(" "))
	assert.Equal(t, 0, p.process)
}

func TestModel_StopCamera(t *testing.T) {
	p := &fakePipeline{view: pipeline.View{State: pipeline.StateCameraActive}}
	m := New(context.Background(), p, nil, nil)

	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, 1, p.stops)
	assert.Equal(t, pipeline.StateIdle, m.view.State)
}

func TestModel_QuitStopsCamera(t *testing.T) {
	p := &fakePipeline{view: pipeline.View{State: pipeline.StateCameraActive}}
	m := New(context.Background(), p, nil, nil)

	_, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, p.stops)
}

func TestModel_StartFailureShowsNotice(t *testing.T) {
	p := &fakePipeline{view: pipeline.View{State: pipeline.StateIdle}, startErr: errors.New("busy device")}
	notices := notify.NewChan(4)
	m := New(context.Background(), p, notices.C(), nil)

	press(t, m, keyPress("c"))
	assert.Equal(t, pipeline.StateIdle, m.view.State)

	notices.Notify(context.Background(), notify.CameraUnavailable)
	msg := waitNotice(notices.C())()
	_, next := m.Update(msg)
	assert.NotNil(t, next)
	assert.Contains(t, m.View(), "Não foi possível acessar a câmera")
}

func TestModel_TransitionRefreshesView(t *testing.T) {
	p := &fakePipeline{view: pipeline.View{State: pipeline.StateIdle}}
	ch := make(chan pipeline.Transition, 1)
	m := New(context.Background(), p, nil, ch)

	p.view.State = pipeline.StateProcessing
	Observer(ch)(pipeline.Transition{From: pipeline.StateCameraActive, To: pipeline.StateProcessing})
	_, _ = m.Update(waitTransition(ch)())
	assert.Equal(t, pipeline.StateProcessing, m.view.State)
	assert.Contains(t, m.View(), "Processando...")
}

func TestObserver_DoesNotBlock(t *testing.T) {
	ch := make(chan pipeline.Transition)
	Observer(ch)(pipeline.Transition{To: pipeline.StateIdle})
}

func TestWaitNilChannels(t *testing.T) {
	assert.Nil(t, waitNotice(nil))
	assert.Nil(t, waitTransition(nil))
}
