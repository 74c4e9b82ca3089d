package logger

import "sync"

// components maps a component name to a logger that overrides the global
// one, usually to run that component at its own level.
var components sync.Map

// Register installs l as the logger returned by Get(name). Init registers
// one logger per entry of Config.Components.
func Register(name string, l *Logger) {
	components.Store(name, l)
}

// Get returns the logger registered for a component, or the global logger
// tagged with the component name when none is.
func Get(name string) *Logger {
	if l, ok := components.Load(name); ok {
		return l.(*Logger)
	}
	return GetGlobalLogger().WithComponent(name)
}

func resetComponents() {
	components.Clear()
}
