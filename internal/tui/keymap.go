package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the scanner screen.
type KeyMap struct {
	Start   key.Binding
	Stop    key.Binding
	Capture key.Binding
	Fill    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "abrir câmera"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc", "x"),
			key.WithHelp("esc", "fechar câmera"),
		),
		Capture: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("espaço", "capturar"),
		),
		Fill: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "preencher formulário"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "sair"),
		),
	}
}

// ShortHelp returns the bindings usable in the given mode.
func (k KeyMap) ShortHelp(cameraOn, hasResult bool) []key.Binding {
	var out []key.Binding
	if cameraOn {
		out = append(out, k.Capture, k.Stop)
	} else {
		out = append(out, k.Start)
	}
	if hasResult {
		out = append(out, k.Fill)
	}
	return append(out, k.Quit)
}
