package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

//nolint:gochecknoglobals // static palettes shared by all encoder instances
var (
	timeStyle = color.New(color.Faint)
	textStyle = color.New(color.FgWhite)

	levelStyles = map[zapcore.Level]*color.Color{
		zapcore.DebugLevel:  color.New(color.FgBlue, color.Bold),
		zapcore.InfoLevel:   color.New(color.FgGreen, color.Bold),
		zapcore.WarnLevel:   color.New(color.FgYellow, color.Bold),
		zapcore.ErrorLevel:  color.New(color.FgRed, color.Bold),
		zapcore.DPanicLevel: color.New(color.FgHiRed, color.Bold),
		zapcore.PanicLevel:  color.New(color.FgHiRed, color.Bold),
		zapcore.FatalLevel:  color.New(color.FgMagenta, color.Bold),
	}

	metaStyles = map[zapcore.Level][2]*color.Color{
		zapcore.WarnLevel:  {color.New(color.FgYellow), color.New(color.FgHiYellow, color.Faint)},
		zapcore.ErrorLevel: {color.New(color.FgRed), color.New(color.FgHiRed, color.Faint)},
	}
	defaultMetaStyle = [2]*color.Color{color.New(color.FgCyan), color.New(color.FgWhite, color.Faint)}

	bufferPool = buffer.NewPool()
)

// prettyEncoder wraps zap's JSON encoder and re-renders each entry as a
// colored header line followed by one indented line per field.
type prettyEncoder struct {
	zapcore.Encoder
}

func (e *prettyEncoder) Clone() zapcore.Encoder {
	return &prettyEncoder{Encoder: e.Encoder.Clone()}
}

func stdout() zapcore.WriteSyncer {
	return zapcore.Lock(os.Stdout)
}

func newPrettyLogger(cfg *zap.Config, out zapcore.WriteSyncer) *zap.Logger {
	enc := &prettyEncoder{Encoder: zapcore.NewJSONEncoder(cfg.EncoderConfig)}
	core := zapcore.NewCore(enc, out, cfg.Level)
	return zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
}

func (e *prettyEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(buf.Bytes())
	payload, err := decodeOrdered(raw)
	if err != nil {
		// keep the JSON line rather than dropping the entry
		return buf, nil //nolint:nilerr // fallback output
	}

	out := bufferPool.Get()
	out.AppendString(renderHeader(entry))
	out.AppendString(renderFields(payload, entry.Level))
	buf.Free()
	return out, nil
}

func renderHeader(entry zapcore.Entry) string {
	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	style, ok := levelStyles[entry.Level]
	if !ok {
		style = textStyle
	}

	var b strings.Builder
	b.WriteString(timeStyle.Sprint("[" + ts.Format(time.DateTime) + "]"))
	b.WriteByte(' ')
	b.WriteString(style.Sprint(entry.Level.CapitalString()))
	if entry.LoggerName != "" {
		b.WriteByte(' ')
		b.WriteString(timeStyle.Sprint("(" + entry.LoggerName + ")"))
	}
	if entry.Message != "" {
		b.WriteByte(' ')
		b.WriteString(textStyle.Sprint(entry.Message))
	}
	b.WriteByte('\n')
	return b.String()
}

func renderFields(payload *orderedmap.OrderedMap[string, any], level zapcore.Level) string {
	styles, ok := metaStyles[level]
	if !ok {
		if level >= zapcore.DPanicLevel {
			styles = metaStyles[zapcore.ErrorLevel]
		} else {
			styles = defaultMetaStyle
		}
	}
	keyStyle, valStyle := styles[0], styles[1]

	var b strings.Builder
	for pair := payload.Oldest(); pair != nil; pair = pair.Next() {
		switch pair.Key {
		case timeKey, levelKey, messageKey, nameKey:
			continue
		}

		value, err := json.MarshalIndent(pair.Value, "  ", "  ")
		if err != nil {
			value = []byte("<unprintable>")
		}
		b.WriteString("  ")
		b.WriteString(keyStyle.Sprint(pair.Key))
		b.WriteString(": ")
		b.WriteString(valStyle.Sprint(string(value)))
		b.WriteByte('\n')
	}
	return b.String()
}

// decodeOrdered parses a JSON object keeping the key order zap produced.
func decodeOrdered(data []byte) (*orderedmap.OrderedMap[string, any], error) {
	om := orderedmap.New[string, any]()
	if err := json.Unmarshal(data, om); err != nil {
		return nil, err
	}
	return om, nil
}
