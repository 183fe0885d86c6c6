package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jorge-barreto/sdlc/internal/state"
)

// Session is an operator log bound to one orchestrate run.
type Session struct {
	ID     string
	Logger *zap.Logger
	file   *os.File
}

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// Open appends JSON log lines to the project's operator log, tagging each
// entry with a fresh session id.
func Open(projectDir string) (*Session, error) {
	path := state.OperatorLogPath(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening operator log: %w", err)
	}
	id := uuid.NewString()
	core := zapcore.NewCore(newEncoder(), zapcore.AddSync(f), zapcore.InfoLevel)
	return &Session{
		ID:     id,
		Logger: zap.New(core).With(zap.String("session", id)),
		file:   f,
	}, nil
}

// Nop returns a session that writes nothing, for dry runs.
func Nop() *Session {
	return &Session{ID: uuid.NewString(), Logger: zap.NewNop()}
}

// Close flushes and closes the log file.
func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	_ = s.Logger.Sync()
	return s.file.Close()
}
