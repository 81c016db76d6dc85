package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

var levelColors = map[string]int{
	"trace": 90, "debug": 36, "info": 32, "warn": 33, "error": 31, "fatal": 35,
}

// newConsoleWriter renders "15:04:05 [SVC][INF] message key:value" lines.
func newConsoleWriter(out io.Writer, serviceName string, noColor bool) zerolog.ConsoleWriter {
	paint := func(code int, s string) string {
		if noColor || code == 0 {
			return s
		}
		return fmt.Sprintf("\033[%dm%s\033[0m", code, s)
	}
	prefix := ""
	if len(serviceName) >= 3 {
		prefix = paint(34, "["+strings.ToUpper(serviceName[:3])+"]")
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
		FormatLevel: func(i any) string {
			lvl, _ := i.(string)
			return prefix + paint(levelColors[lvl], "["+strings.ToUpper(abbrev(lvl))+"]")
		},
		FormatFieldName: func(i any) string { return fmt.Sprintf("%s:", i) },
	}
}

func abbrev(level string) string {
	switch level {
	case "trace":
		return "trc"
	case "debug":
		return "dbg"
	case "info":
		return "inf"
	case "warn":
		return "wrn"
	case "error":
		return "err"
	case "fatal":
		return "ftl"
	}
	return level
}
