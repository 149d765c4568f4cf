// April - распознавание речи на движке April ASR из командной строки.
//
// Команды:
//
//	april info [model.april]         метаданные модели
//	april transcribe <audio>...      распознать WAV (16 bit mono) или сырой PCM16 LE
//	april listen                     диктовка по горячей клавише
//	april serve                      HTTP/websocket сервер распознавания
//	april models list                модели из реестра
//	april models download <id>       скачать модель
//	april hotkey                     выбрать горячую клавишу диктовки
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"aprilgo/internal/config"
	"aprilgo/internal/i18n"
	"aprilgo/internal/logging"
	"aprilgo/pkg/april"
	_ "aprilgo/pkg/april/capi"
)

// Version устанавливается при сборке через -ldflags.
var Version = "dev"

const usage = `Usage: april [flags] <command> [args]

Commands:
  info [model.april]       show model metadata
  transcribe <audio>...    transcribe WAV (16-bit mono) or raw PCM16 LE files
  listen                   dictation toggled by the global hotkey
  serve                    HTTP and websocket recognition server
  models list              list known models
  models download <id>     download a model
  hotkey                   choose the dictation hotkey
  version                  print version

Flags:
`

// env - то, что нужно всем командам.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	flags *pflag.FlagSet
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("april", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	fs.Bool("json", false, "вывод в JSON (transcribe, info)")
	fs.Bool("results", false, "печатать каждый результат сессии (transcribe)")
	fs.Bool("pick", false, "выбрать файл модели в диалоге (listen)")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	if rest[0] == "version" {
		fmt.Println("april", Version)
		return 0
	}

	cfg, err := config.Load("", fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "april:", err)
		return 1
	}

	logCfg := cfg.Log()
	log, err := logging.New(logCfg.Level, logCfg.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "april:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	april.SetLogger(log.Named("april"))

	if lang, ok := i18n.ParseLanguage(cfg.UILanguage()); ok {
		i18n.SetLanguage(lang)
	}

	e := &env{cfg: cfg, log: log, flags: fs}
	if err := dispatch(e, rest[0], rest[1:]); err != nil {
		log.Error("command failed", zap.String("command", rest[0]), zap.Error(err))
		fmt.Fprintln(os.Stderr, "april:", err)
		return 1
	}
	return 0
}

func dispatch(e *env, cmd string, args []string) error {
	switch cmd {
	case "info":
		return cmdInfo(e, args)
	case "transcribe":
		return cmdTranscribe(e, args)
	case "listen":
		return cmdListen(e)
	case "serve":
		return cmdServe(e)
	case "models":
		return cmdModels(e, args)
	case "hotkey":
		return cmdHotkey(e)
	default:
		e.flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (e *env) boolFlag(name string) bool {
	v, err := e.flags.GetBool(name)
	return err == nil && v
}
