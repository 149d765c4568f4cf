package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"aprilgo/internal/app"
	"aprilgo/internal/audio"
	"aprilgo/internal/audio/wav"
	"aprilgo/internal/dialog"
	"aprilgo/internal/hotkey"
	"aprilgo/internal/i18n"
	"aprilgo/internal/input"
	"aprilgo/internal/models"
	"aprilgo/internal/notify"
	"aprilgo/internal/server"
	"aprilgo/internal/speech"
	"aprilgo/internal/tray"
	"aprilgo/internal/waveform"
	"aprilgo/pkg/april"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (e *env) manager() (*models.Manager, error) {
	return models.NewManager(e.cfg.ModelsDir(), e.log.Named("models"))
}

// loadFactory загружает модель из model.path или model.id.
func (e *env) loadFactory() (*speech.Factory, error) {
	mgr, err := e.manager()
	if err != nil {
		return nil, err
	}
	f := speech.NewFactory(mgr, speech.Options{
		Mode:   e.cfg.SessionFlags(),
		Chunk:  e.cfg.Chunk(),
		Logger: e.log.Named("speech"),
	})
	if path := e.cfg.ModelPath(); path != "" {
		err = f.LoadPath(path)
	} else {
		err = f.Load(e.cfg.ModelID())
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func cmdInfo(e *env, args []string) error {
	path := e.cfg.ModelPath()
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		mgr, err := e.manager()
		if err != nil {
			return err
		}
		if path, err = mgr.Resolve(e.cfg.ModelID()); err != nil {
			return err
		}
	}

	model, err := april.NewModel(path)
	if err != nil {
		return err
	}
	defer model.Close()

	info, err := model.Info()
	if err != nil {
		return err
	}

	if e.boolFlag("json") {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"path":        path,
			"name":        info.Name,
			"description": info.Description,
			"language":    info.Language,
			"sample_rate": info.SampleRate,
		})
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T("cli_model"), info.Name)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T("cli_description"), info.Description)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T("cli_language"), info.Language)
	fmt.Fprintf(tw, "%s:\t%d Hz\n", i18n.T("cli_sample_rate"), info.SampleRate)
	return tw.Flush()
}

func cmdTranscribe(e *env, files []string) error {
	if len(files) == 0 {
		return errors.New("transcribe: no audio files given")
	}

	f, err := e.loadFactory()
	if err != nil {
		return err
	}
	defer f.Close()
	rec := f.Current()

	ctx, cancel := signalContext()
	defer cancel()

	asJSON := e.boolFlag("json")
	enc := json.NewEncoder(os.Stdout)
	for _, file := range files {
		clip, err := wav.ReadFile(file)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if clip.SampleRate != 0 && clip.SampleRate != rec.SampleRate() {
			return fmt.Errorf("%s: sample rate %d, model expects %d", file, clip.SampleRate, rec.SampleRate())
		}

		if e.boolFlag("results") {
			if err := printResults(rec, file, clip.Samples); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			continue
		}

		tr, err := rec.Transcribe(ctx, clip.Samples)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		e.log.Debug("transcribed", zap.String("file", file), zap.Float64("seconds", clip.Seconds(rec.SampleRate())))

		if asJSON {
			if err := enc.Encode(map[string]any{"file": file, "text": tr.Text(), "partial": tr.Partial}); err != nil {
				return err
			}
			continue
		}
		if len(files) > 1 {
			fmt.Printf("%s: %s\n", file, tr.Text())
		} else {
			fmt.Println(tr.Text())
		}
	}
	return nil
}

// printResults печатает каждый результат сессии по мере поступления.
func printResults(rec speech.Recognizer, file string, samples []int16) error {
	var calls int
	st, err := rec.Stream(func(r speech.Result) {
		calls++
		fmt.Printf("%s: call %d, %s: %q\n", file, calls, r.Type, r.Tokens.Text())
	})
	if err != nil {
		return err
	}
	if err := st.Feed(samples); err != nil {
		_ = st.Close()
		return err
	}
	if err := st.Flush(); err != nil {
		_ = st.Close()
		return err
	}
	return st.Close()
}

func cmdListen(e *env) error {
	var err error
	// Главный поток остаётся за горячими клавишами (требование macOS).
	hotkey.RunOnMainThread(func() {
		err = listen(e)
	})
	return err
}

func listen(e *env) error {
	if e.boolFlag("pick") {
		path, err := dialog.SelectModelFile(e.cfg.ModelsDir())
		if err != nil {
			return err
		}
		e.cfg.SetModelPath(path)
	}

	f, err := e.loadFactory()
	if err != nil {
		dialog.ShowError(err.Error())
		return err
	}
	defer f.Close()

	mic, err := audio.New(f.Current().SampleRate())
	if err != nil {
		return fmt.Errorf("microphone: %w", err)
	}
	defer mic.Close()

	dict := e.cfg.Dictation()
	var typer input.Typer
	if dict.TypeText {
		if typer, err = input.New(); err != nil {
			e.log.Warn("typing disabled, printing to stdout", zap.Error(err))
			typer = input.NewWriter(os.Stdout)
		}
	} else {
		typer = input.NewWriter(os.Stdout)
	}

	ctx, cancel := signalContext()
	defer cancel()

	notifier := notify.New(e.cfg.NotificationsEnabled(), e.log.Named("notify"))
	deps := app.Deps{
		Config:   e.cfg,
		Mic:      mic,
		Factory:  f,
		Typer:    typer,
		Notifier: notifier,
		Logger:   e.log.Named("dictation"),
	}

	if dict.Overlay {
		w := waveform.New(waveform.DefaultConfig())
		defer w.Hide()
		deps.Overlay = w
	}

	var tr *tray.Tray
	if dict.Tray {
		tr = tray.New(tray.Callbacks{
			OnNotificationsToggle: func() bool {
				on := e.cfg.ToggleNotifications()
				notifier.SetEnabled(on)
				if err := e.cfg.Save(""); err != nil {
					e.log.Warn("save config", zap.Error(err))
				}
				return on
			},
			OnPickModel: func() {
				if err := pickModel(e, f, mic.SampleRate()); err != nil {
					if !errors.Is(err, dialog.ErrCanceled) {
						e.log.Error("pick model", zap.Error(err))
						dialog.ShowError(err.Error())
					}
					return
				}
				tr.SetModel(f.Current().Name())
			},
			OnQuit: cancel,
		}, e.cfg.NotificationsEnabled())
		deps.Indicator = tr
	}

	controller := app.New(deps)
	defer controller.Close()

	hk := hotkey.New(controller.Toggle, e.log.Named("hotkey"))
	defer func() { _ = hk.Unregister() }()
	start := func() error {
		if err := hk.Register(e.cfg.Hotkey()); err != nil {
			return err
		}
		keys := e.cfg.Hotkey().String()
		notifier.Ready(keys)
		fmt.Fprintln(os.Stderr, i18n.Tf("cli_listening", keys))
		return nil
	}

	if tr == nil {
		if err := start(); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}

	// Трей блокирует до Quit; горячая клавиша регистрируется после его
	// готовности, как и выход по сигналу.
	var startErr error
	tr.Run(func() {
		tr.SetModel(f.Current().Name())
		if startErr = start(); startErr != nil {
			cancel()
		}
		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
	})
	return startErr
}

// pickModel загружает выбранный в диалоге файл модели. Частота модели должна
// совпадать с частотой уже открытого микрофона.
func pickModel(e *env, f *speech.Factory, rate int) error {
	path, err := dialog.SelectModelFile(e.cfg.ModelsDir())
	if err != nil {
		return err
	}
	rec, err := f.CreateFromPath(path)
	if err != nil {
		return err
	}
	if rec.SampleRate() != rate {
		rec.Close()
		return fmt.Errorf("model %s expects %d Hz, microphone records at %d Hz; restart listen with this model",
			path, rec.SampleRate(), rate)
	}
	f.Use(rec, path)
	e.cfg.SetModelPath(path)
	e.log.Info("model switched", zap.String("model", rec.Name()), zap.String("path", path))
	return nil
}

func cmdServe(e *env) error {
	f, err := e.loadFactory()
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := signalContext()
	defer cancel()

	srv := server.New(f, e.cfg.Server(), e.log.Named("server"))
	fmt.Fprintln(os.Stderr, i18n.Tf("cli_serving", e.cfg.Server().Addr))
	return srv.ListenAndServe(ctx)
}

func cmdModels(e *env, args []string) error {
	if len(args) == 0 {
		return errors.New("models: want list or download <id>")
	}
	mgr, err := e.manager()
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, m := range models.Registry {
			state := i18n.T("cli_not_downloaded")
			if mgr.IsDownloaded(m) {
				state = i18n.T("cli_downloaded")
			}
			mark := " "
			if m.ID == e.cfg.ModelID() {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s %s\t%s\t%s\t%d MB\t%s\n", mark, m.ID, m.Name, m.Language, m.Size>>20, state)
		}
		return tw.Flush()

	case "download":
		if len(args) < 2 {
			return errors.New("models download: missing model id")
		}
		info, ok := models.GetModel(args[1])
		if !ok {
			return fmt.Errorf("models download: %q: %w", args[1], models.ErrUnknownModel)
		}

		ctx, cancel := signalContext()
		defer cancel()

		progress := make(chan models.Progress, 16)
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			last := -1
			for p := range progress {
				if p.Total <= 0 {
					continue
				}
				pct := int(p.Downloaded * 100 / p.Total)
				if pct != last {
					last = pct
					fmt.Fprintf(os.Stderr, "\r%s", i18n.Tf("cli_downloading", info.ID, pct))
				}
			}
			fmt.Fprintln(os.Stderr)
		}()

		err := mgr.Download(ctx, info, progress)
		close(progress)
		<-printed
		if err != nil {
			return err
		}

		if e.cfg.ModelID() != info.ID {
			e.cfg.SetModelID(info.ID)
			if err := e.cfg.Save(""); err != nil {
				e.log.Warn("save config", zap.Error(err))
			}
		}
		fmt.Println(mgr.Path(info))
		return nil

	default:
		return fmt.Errorf("models: unknown subcommand %q", args[0])
	}
}

func cmdHotkey(e *env) error {
	hk, err := dialog.SelectHotkey(e.cfg.Hotkey())
	if err != nil {
		if errors.Is(err, dialog.ErrCanceled) {
			return nil
		}
		return err
	}
	e.cfg.SetHotkey(hk)
	if err := e.cfg.Save(""); err != nil {
		return err
	}
	fmt.Println(hk.String())
	return nil
}
