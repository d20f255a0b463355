package logging

import "sync"

// components логгеры компонентов, созданные от текущего корня
var components = struct {
	sync.Mutex
	byName map[string]*Logger
}{byName: make(map[string]*Logger)}

// GetComponentLogger логгер компонента. Один и тот же экземпляр на имя,
// пока InitLogger не сменит корень.
func GetComponentLogger(component string) *Logger {
	components.Lock()
	defer components.Unlock()

	if l, ok := components.byName[component]; ok {
		return l
	}
	l := root().Named(component)
	components.byName[component] = l
	return l
}

// GetWorldLogger логгер мира
func GetWorldLogger() *Logger {
	return GetComponentLogger("world")
}

func forgetComponents() {
	components.Lock()
	components.byName = make(map[string]*Logger)
	components.Unlock()
}

// Enabled пишет ли логгер уровень хоть куда-нибудь
func (l *Logger) Enabled(level LogLevel) bool {
	return l.base.Core().Enabled(level.zapLevel())
}
