package config

const (
	defaultFPS               = 24
	defaultLoop              = true
	defaultColor             = false
	defaultFontSize          = 10.0
	defaultVolume            = 1.0
	defaultCharWidthRatio    = 0.6
	defaultLineHeightRatio   = 1.11
	defaultDarknessThreshold = 5
	defaultMinFontSize       = 1.0
	defaultMaxFontSize       = 50.0
	defaultFitPadding        = 20.0
	defaultBackoffMS         = 16
	defaultMinYieldMS        = 0
	defaultBind              = ":9999"
	defaultHandshakeMS       = 5000
	defaultWatchDebounceMS   = 250
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Player: Player{
			FPS:      defaultFPS,
			Loop:     defaultLoop,
			Color:    defaultColor,
			FontSize: defaultFontSize,
			Volume:   defaultVolume,
		},
		Render: Render{
			CharWidthRatio:    defaultCharWidthRatio,
			LineHeightRatio:   defaultLineHeightRatio,
			DarknessThreshold: defaultDarknessThreshold,
			MinFontSize:       defaultMinFontSize,
			MaxFontSize:       defaultMaxFontSize,
			FitPadding:        defaultFitPadding,
		},
		Loader: Loader{
			BackoffMS:  defaultBackoffMS,
			MinYieldMS: defaultMinYieldMS,
		},
		Server: Server{
			Bind:               defaultBind,
			HandshakeTimeoutMS: defaultHandshakeMS,
		},
		Watch: Watch{
			DebounceMS: defaultWatchDebounceMS,
			Patterns:   []string{"*.{txt,cframe,colors}", "details.md", "audio.mp3"},
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
