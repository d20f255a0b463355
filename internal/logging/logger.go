package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из конфигурации, по умолчанию INFO
func ParseLevel(s string) LogLevel {
	switch s {
	case "trace", "TRACE":
		return TRACE
	case "debug", "DEBUG":
		return DEBUG
	case "warn", "WARN":
		return WARN
	case "error", "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// zapLevel у zap нет TRACE, он сливается с DEBUG
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case TRACE, DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options параметры корневого логгера
type Options struct {
	Dir          string   // каталог для файлов логов, пусто - без файла
	ConsoleLevel LogLevel // уровень для stdout
	FileLevel    LogLevel // уровень для файла
	MaxSizeMB    int      // ротация файла по размеру
	MaxBackups   int
	MaxAgeDays   int
}

// Logger логгер компонента поверх zap
type Logger struct {
	component string
	base      *zap.Logger
	sugar     *zap.SugaredLogger
}

var (
	rootMu     sync.RWMutex
	rootLogger *Logger
	rootSink   *lumberjack.Logger
)

// InitLogger инициализирует корневой логгер: консоль плюс файл с ротацией
func InitLogger(opts Options) error {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), opts.ConsoleLevel.zapLevel()),
	}

	var sink *lumberjack.Logger
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("ошибка создания директории логов: %w", err)
		}
		sink = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "server.log"),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), opts.FileLevel.zapLevel()))
	}

	base := zap.New(zapcore.NewTee(cores...))

	rootMu.Lock()
	if rootSink != nil {
		rootSink.Close()
	}
	rootSink = sink
	rootLogger = wrap("", base)
	rootMu.Unlock()

	// Компоненты, созданные до инициализации, держат старый корень
	forgetComponents()
	return nil
}

// CloseLogger сбрасывает буферы и закрывает файл логов
func CloseLogger() {
	rootMu.Lock()
	defer rootMu.Unlock()
	if rootLogger != nil {
		_ = rootLogger.base.Sync()
	}
	if rootSink != nil {
		rootSink.Close()
		rootSink = nil
	}
}

func wrap(component string, base *zap.Logger) *Logger {
	return &Logger{component: component, base: base, sugar: base.Sugar()}
}

// root до InitLogger возвращает молчащий логгер, тесты не шумят
func root() *Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	if rootLogger == nil {
		return wrap("", zap.NewNop())
	}
	return rootLogger
}

// Named дочерний логгер компонента
func (l *Logger) Named(component string) *Logger {
	return wrap(component, l.base.Named(component))
}

// Trace пишется как DEBUG с пометкой
func (l *Logger) Trace(format string, args ...interface{}) {
	l.sugar.Debugf("[TRACE] "+format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Structured возвращает zap-логгер для событий с полями
func (l *Logger) Structured() *zap.Logger {
	return l.base
}

// Component имя компонента
func (l *Logger) Component() string {
	return l.component
}

// Sync сбрасывает буферы логгера. Ошибку Sync для stdout игнорируем:
// на терминале он всегда возвращает EINVAL.
func (l *Logger) Sync() {
	_ = l.base.Sync()
}

// LogInfo логирует сообщение уровня INFO
func LogInfo(format string, args ...interface{}) {
	root().Info(format, args...)
}

// LogWarn логирует сообщение уровня WARN
func LogWarn(format string, args ...interface{}) {
	root().Warn(format, args...)
}

// LogError логирует сообщение уровня ERROR
func LogError(format string, args ...interface{}) {
	root().Error(format, args...)
}
