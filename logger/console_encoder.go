package logger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// ANSI codes for the console palette. One muted scheme, no theme switching:
// shop-floor terminals are varied enough without us repainting them.
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorTime      = "\x1b[38;5;109m" // soft blue for timestamps
	colorComponent = "\x1b[38;5;142m" // muted green for component names
	colorFg        = "\x1b[38;5;223m" // soft cream for plain text
	colorID        = "\x1b[38;5;108m" // cyan-green for identifiers
	colorNumber    = "\x1b[38;5;175m" // muted purple for numbers
	colorKey       = "\x1b[38;5;245m" // grey for field keys

	colorWarnFg  = "\x1b[38;5;214m"
	colorWarnBg  = "\x1b[48;5;58m"
	colorErrorFg = "\x1b[38;5;167m"
	colorErrorBg = "\x1b[48;5;88m"
	colorAccent  = "\x1b[38;5;208m" // warm orange for disturbances
)

// messageColor picks a color from the message content so related lines group
// visually: disturbances stand out, routine progression stays calm.
func messageColor(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "breakdown") || strings.Contains(lower, "ignored") ||
		strings.Contains(lower, "late"):
		return colorAccent
	case strings.Contains(lower, "replan") || strings.Contains(lower, "urgent"):
		return colorWarnFg
	case strings.Contains(lower, "event") || strings.Contains(lower, "applied") ||
		strings.Contains(lower, "completed"):
		return colorID
	case strings.Contains(lower, "start") || strings.Contains(lower, "stop") ||
		strings.Contains(lower, "shutdown") || strings.Contains(lower, "listening"):
		return colorComponent
	default:
		return colorFg
	}
}

// consoleEncoder implements a calm, compact console encoder.
// Format: "13:04:35  runner  Hourly report pushed  time=2026-01-05T09:00 queue=4"
type consoleEncoder struct {
	zapcore.Encoder // embed a base encoder for field serialization
}

func newConsoleEncoder() *consoleEncoder {
	return &consoleEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
	}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	final.AppendString(colorTime)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level is only shown for WARN and worse; INFO lines stay quiet
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelTag(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorComponent)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(messageColor(ent.Message))
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(formatFields(fields))
	}

	final.AppendString("\n")
	return final, nil
}

// levelTag returns bold + colored + background for WARN/ERROR
func levelTag(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return colorKey + "debug" + colorReset
	case zapcore.WarnLevel:
		return colorBold + colorWarnBg + colorWarnFg + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colorErrorBg + colorErrorFg + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorErrorBg + colorErrorFg + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens component names: server -> server, engine.replan -> e.replan
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// formatFields renders structured fields as "key=value" pairs, keys dimmed,
// values colored by kind so identifiers and counts are scannable.
func formatFields(fields []zapcore.Field) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		val := fieldValue(field)
		if val == "" {
			continue
		}
		valColor := colorID
		if isNumeric(field) {
			valColor = colorNumber
		}
		parts = append(parts, colorKey+field.Key+"="+colorReset+valColor+val+colorReset)
	}
	return strings.Join(parts, " ")
}

func isNumeric(field zapcore.Field) bool {
	switch field.Type {
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type,
		zapcore.Float64Type, zapcore.Float32Type, zapcore.DurationType:
		return true
	}
	return false
}

// fieldValue extracts a printable value from a zap field
func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.BoolType:
		if field.Integer == 1 {
			return "true"
		}
		return "false"
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.Float64Type:
		return strconv.FormatFloat(math.Float64frombits(uint64(field.Integer)), 'g', -1, 64)
	case zapcore.Float32Type:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(field.Integer))), 'g', -1, 32)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}
