package log

import (
	"fmt"
	"time"

	"github.com/loomrt/loom/utils/jsonutil"
	"github.com/loomrt/loom/utils/timeutil"
)

type LogInfo struct {
	Level    int
	Created  string
	Source   string
	Message  string
	Category string
}

func NewLogInfo(level int, created string, source string, message string, category string) *LogInfo {
	info := new(LogInfo)
	info.Level = level
	info.Created = created
	info.Source = source
	info.Message = message
	info.Category = category
	return info
}

func ParseLogInfo(str string) (*LogInfo, error) {
	l := new(LogInfo)
	err := jsonutil.Unmarshal(str, l)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LogInfo) SetCreated(tm time.Time) {
	l.Created = tm.Format(timeutil.FORMAT_NOW_A)
}

func (l *LogInfo) ToJson() (string, error) {
	return jsonutil.Marshal(l)
}

// Println emits the LogInfo through the package's default structured
// logger, tagged with its category/source so legacy Logger.Debug/Info/...
// calls end up in the same zap-backed sink as the new structured L() API.
func (l *LogInfo) Println() {
	fields := []Field{String("category", l.Category)}
	if l.Source != "" {
		fields = append(fields, String("source", l.Source))
	}
	z := defaultStructLogger()
	switch l.Level {
	case DEBUG:
		z.Debug(l.Message, fields...)
	case INFO:
		z.Info(l.Message, fields...)
	case WARN:
		z.Warn(l.Message, fields...)
	case ERROR:
		z.Error(l.Message, fields...)
	default:
		z.Error(l.Message, fields...)
	}
}

func (l *LogInfo) FormatString() string {
	if l.Source == "" {
		return fmt.Sprintf("[%s] [%s] [%s] %s",
			l.Created,
			l.Category,
			LevelToString(l.Level),
			l.Message)
	}
	return fmt.Sprintf("[%s] [%s] [%s] (%s) %s",
		l.Created,
		l.Category,
		LevelToString(l.Level),
		l.Source,
		l.Message)
}
