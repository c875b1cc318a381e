package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "live-order.log"

type Logger struct {
	*logrus.Logger
	fileLogger *logrus.Logger
	rotator    *lumberjack.Logger
}

var defaultLogger *Logger

func init() {
	// 콘솔 로그
	consoleLogger := logrus.New()
	consoleLogger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	consoleLogger.SetOutput(os.Stdout)
	consoleLogger.SetLevel(logrus.InfoLevel)

	// 파일 로그는 Setup 전까지 버린다
	fileLogger := logrus.New()
	fileLogger.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint:     false,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	fileLogger.SetLevel(logrus.InfoLevel)
	fileLogger.SetOutput(io.Discard)

	defaultLogger = &Logger{
		Logger:     consoleLogger,
		fileLogger: fileLogger,
	}
}

// Setup 로그 레벨과 파일 로그 디렉터리를 설정한다. dir 가 비어 있으면 파일 로그를 쓰지 않는다.
func Setup(level, dir string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	defaultLogger.Logger.SetLevel(lvl)
	defaultLogger.fileLogger.SetLevel(lvl)

	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// lumberjack 로그 순환
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    10,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
	if defaultLogger.rotator != nil {
		_ = defaultLogger.rotator.Close()
	}
	defaultLogger.rotator = rotator
	defaultLogger.fileLogger.SetOutput(rotator)
	return nil
}

// Close 파일 로그를 닫는다
func Close() {
	if defaultLogger.rotator != nil {
		_ = defaultLogger.rotator.Close()
	}
}

func Infof(format string, args ...any) {
	defaultLogger.Logger.Infof(format, args...)
	defaultLogger.fileLogger.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Logger.Warnf(format, args...)
	defaultLogger.fileLogger.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	defaultLogger.Logger.Errorf(format, args...)
	defaultLogger.fileLogger.Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	defaultLogger.fileLogger.Errorf(format, args...)
	defaultLogger.Logger.Fatalf(format, args...)
}

func Debugf(format string, args ...any) {
	defaultLogger.Logger.Debugf(format, args...)
	defaultLogger.fileLogger.Debugf(format, args...)
}
