package host

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModuleName is the module of the standard host functions.
const ModuleName = "plugin:host"

// Log levels accepted by log.
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
)

type outputKey struct{}

// WithOutput returns a context whose guest write calls append to w.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

// OutputFrom returns the writer set by WithOutput, or io.Discard.
func OutputFrom(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return io.Discard
}

const i32 = api.ValueTypeI32

// Standard returns a registry holding the plugin:host module:
//
//	write(ptr i32, len i32)
//	log(level i32, ptr i32, len i32)
func Standard() *Registry {
	r := NewRegistry()
	r.Define(ModuleName, "write", write, []api.ValueType{i32, i32}, nil)
	r.Define(ModuleName, "log", logLine, []api.ValueType{i32, i32, i32}, nil)
	return r
}

func write(ctx context.Context, mod api.Module, stack []uint64) {
	data, ok := guestBytes(mod, stack[0], stack[1])
	if !ok {
		Logger().Warn("write outside guest memory",
			zap.String("module", mod.Name()),
			zap.Uint32("ptr", api.DecodeU32(stack[0])),
			zap.Uint32("len", api.DecodeU32(stack[1])))
		return
	}
	_, _ = OutputFrom(ctx).Write(data)
}

func logLine(_ context.Context, mod api.Module, stack []uint64) {
	data, ok := guestBytes(mod, stack[1], stack[2])
	if !ok {
		return
	}
	level := zapcore.InfoLevel
	switch api.DecodeI32(stack[0]) {
	case LevelDebug:
		level = zapcore.DebugLevel
	case LevelWarn:
		level = zapcore.WarnLevel
	case LevelError:
		level = zapcore.ErrorLevel
	}
	Logger().Log(level, string(data), zap.String("module", mod.Name()))
}

func guestBytes(mod api.Module, ptr, n uint64) ([]byte, bool) {
	mem := mod.Memory()
	if mem == nil {
		return nil, false
	}
	return mem.Read(api.DecodeU32(ptr), api.DecodeU32(n))
}
