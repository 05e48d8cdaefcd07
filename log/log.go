package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger

// errorsFile is the file where the errors are being written
var (
	errorsFile   *os.File
	errorsFileMu sync.Mutex
)

func init() {
	// default level: debug
	Init("debug", []string{"stdout"}, "")
}

// Init the logger with defined level. outputs defines the outputs where the
// logs will be sent. By default outputs contains "stdout", which prints the
// logs at the output of the process. To add a log file as output, the path
// should be added at the outputs array. To avoid printing the logs but
// storing them on a file, can use []string{"pathtofile.log"}. errorsPath
// defines the file where to store the errors, if set to "" will not store
// errors.
func Init(levelStr string, outputs []string, errorsPath string) {
	var level zap.AtomicLevel
	err := level.UnmarshalText([]byte(levelStr))
	if err != nil {
		panic(fmt.Errorf("Error on setting log level: %s", err))
	}
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	cfg := zap.Config{
		Level:            level,
		Encoding:         "console",
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "message",

			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalColorLevelEncoder,

			TimeKey: "timestamp",
			EncodeTime: func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
				encoder.AppendString(ts.Local().Format(time.RFC3339))
			},
			EncodeDuration: zapcore.SecondsDurationEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			StacktraceKey: "stacktrace",
			LineEnding:    zapcore.DefaultLineEnding,
		},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	//nolint:errcheck
	defer logger.Sync()
	withOptions := logger.WithOptions(zap.AddCallerSkip(1))
	log = withOptions.Sugar()

	errorsFileMu.Lock()
	if errorsFile != nil {
		//nolint:errcheck
		errorsFile.Close()
		errorsFile = nil
	}
	if errorsPath != "" {
		errorsFile, err = os.OpenFile(errorsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			errorsFileMu.Unlock()
			panic(err)
		}
		log.Infof("file where errors will be written: %s", errorsPath)
	}
	errorsFileMu.Unlock()

	log.Infof("log level: %s, outputs: %s", level, strings.Join(outputs, ","))
}

func writeToErrorsFile(msg string) {
	errorsFileMu.Lock()
	defer errorsFileMu.Unlock()
	if errorsFile == nil {
		return
	}
	//nolint:errcheck
	errorsFile.WriteString(fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), msg))
}

// Debug calls log.Debug
func Debug(args ...interface{}) {
	log.Debug(args...)
}

// Info calls log.Info
func Info(args ...interface{}) {
	log.Info(args...)
}

// Warn calls log.Warn
func Warn(args ...interface{}) {
	log.Warn(args...)
}

// Error calls log.Error and stores the error message into the errors file
func Error(args ...interface{}) {
	log.Error(args...)
	writeToErrorsFile(fmt.Sprint(args...))
}

// Fatal calls log.Fatal
func Fatal(args ...interface{}) {
	log.Fatal(args...)
}

// Debugf calls log.Debugf
func Debugf(template string, args ...interface{}) {
	log.Debugf(template, args...)
}

// Infof calls log.Infof
func Infof(template string, args ...interface{}) {
	log.Infof(template, args...)
}

// Warnf calls log.Warnf
func Warnf(template string, args ...interface{}) {
	log.Warnf(template, args...)
}

// Errorf calls log.Errorf and stores the error message into the errors file
func Errorf(template string, args ...interface{}) {
	log.Errorf(template, args...)
	writeToErrorsFile(fmt.Sprintf(template, args...))
}

// Fatalf calls log.Fatalf
func Fatalf(template string, args ...interface{}) {
	log.Fatalf(template, args...)
}

// Debugw calls log.Debugw
func Debugw(template string, kv ...interface{}) {
	log.Debugw(template, kv...)
}

// Infow calls log.Infow
func Infow(template string, kv ...interface{}) {
	log.Infow(template, kv...)
}

// Warnw calls log.Warnw
func Warnw(template string, kv ...interface{}) {
	log.Warnw(template, kv...)
}

// Errorw calls log.Errorw and stores the message and its fields into the
// errors file
func Errorw(template string, kv ...interface{}) {
	log.Errorw(template, kv...)
	writeToErrorsFile(strings.TrimSpace(fmt.Sprintln(append([]interface{}{template}, kv...)...)))
}

// Fatalw calls log.Fatalw
func Fatalw(template string, kv ...interface{}) {
	log.Fatalw(template, kv...)
}
