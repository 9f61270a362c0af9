// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig registers the baked-in defaults so a freshly created
// config.yaml (or one missing a key after an upgrade) still produces a
// usable Settings value.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("server.listenaddr", ":8080")
	viper.SetDefault("server.vaultroot", "./vault")
	viper.SetDefault("server.dbpath", "./vault/.journal/journal.db")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.filepath", "logs/journal.log")
	viper.SetDefault("log.maxsizemb", 50)
	viper.SetDefault("log.maxbackups", 5)
	viper.SetDefault("log.maxagedays", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("log.console", true)

	viper.SetDefault("tools.ffmpegpath", "ffmpeg")
	viper.SetDefault("tools.ffprobepath", "ffprobe")
	viper.SetDefault("tools.whisperpath", "whisper")
	viper.SetDefault("tools.modelsdir", "./models")

	viper.SetDefault("runner.tickinterval", 1)
	viper.SetDefault("runner.heartbeattimeout", 300)
}
