package main

import (
	"flag"
	"os"

	"github.com/page-xia/webwindow"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	configPath := fs.String("config", "", "yaml config file")
	startURL := fs.String("url", "", "initial url")
	debug := fs.Bool("debug", false, "enable dev tools and context menus")
	httpsOnly := fs.Bool("https-only", false, "cancel navigations to non-https urls")
	logLevel := fs.String("log-level", "", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := webwindow.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = webwindow.LoadConfig(*configPath); err != nil {
			log := webwindow.NewLogger(os.Stderr, *logLevel)
			log.Error().Err(err).Str("file", *configPath).Msg("load config")
			return 1
		}
	}
	if *startURL != "" {
		cfg.StartURL = *startURL
	}
	if *debug {
		cfg.Debug = true
		cfg.ContextMenus = true
	}
	if *httpsOnly {
		cfg.HTTPSOnly = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log := webwindow.NewLogger(os.Stderr, cfg.LogLevel)

	w := webwindow.New("WebWindow", webwindow.WithConfig(cfg), webwindow.WithLogger(log))
	w.OnCreationComplete(func() {
		if !w.Ready() {
			log.Error().Msg("webview could not be created")
		}
	})
	w.OnNavigationComplete(func() {
		log.Info().Msg("navigation complete")
	})
	w.OnWebViewReady(func() {
		w.PostMessage(webwindow.FunctionCall("hostReady", ""))
	})
	w.OnMessageReceived(func(text string) {
		log.Info().Str("text", text).Msg("message from page")
		w.PostMessage(text)
	})
	w.OnFunctionReceived(func(name, args string) {
		switch name {
		case "navigate":
			w.NavigateTo(args)
		case "reload":
			w.Initialize()
		default:
			log.Warn().Str("function", name).Str("args", args).Msg("unknown function")
		}
	})
	return w.Show()
}
