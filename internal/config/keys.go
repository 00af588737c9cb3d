package config

// Configuration keys. Each doubles as the flag name and, upper-cased with
// "-" replaced by "_" and prefixed with YTDL_HERE_, the environment variable.
const (
	KeyConfigFile        = "config"
	KeyDir               = "dir"
	KeyEngine            = "engine"
	KeyYtDlpPath         = "ytdlp-path"
	KeyClipboardInterval = "clipboard-interval"
	KeyEditCooldown      = "edit-cooldown"
	KeyNoClipboard       = "no-clipboard"
	KeyPlain             = "plain"
	KeyLogFile           = "log-file"
	KeyLogLevel          = "log-level"
	KeyHistoryDB         = "history-db"
	KeyNoHistory         = "no-history"
	KeyFetchTimeout      = "fetch-timeout"
	KeyAudioMP3          = "audio-mp3"
)

const (
	EngineYtDlp  = "ytdlp"
	EngineNative = "native"
)
