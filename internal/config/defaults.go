package config

const (
	defaultStagingDir                = "~/.local/share/retake/staging"
	defaultSubmissionsDir            = "~/.local/share/retake/submissions"
	defaultLogDir                    = "~/.local/share/retake/logs"
	defaultLogRetentionDays          = 30
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultWindowSeconds             = 10
	defaultPreviewTimeoutSeconds     = 60
	defaultExportTimeoutSeconds      = 60
	defaultCaptureTimeoutSeconds     = 30
	defaultEndOfStreamTimeoutSeconds = 5
	defaultChunkBytes                = 64 << 10
	defaultCaptureAdapter            = "file"
	defaultFFmpegBinary              = "ffmpeg"
	defaultFFprobeBinary             = "ffprobe"
	defaultVideoFormat               = "x11grab"
	defaultVideoInput                = ":0.0"
	defaultAudioFormat               = "pulse"
	defaultAudioInput                = "default"
	defaultVideoCodec                = "libvpx"
	defaultAudioCodec                = "libopus"
	defaultStopTimeoutSeconds        = 10
	defaultProber                    = "webm"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:     defaultStagingDir,
			SubmissionsDir: defaultSubmissionsDir,
			LogDir:         defaultLogDir,
		},
		Selection: Selection{
			DefaultWindowSeconds: defaultWindowSeconds,
		},
		Pipeline: Pipeline{
			PreviewTimeoutSeconds:     defaultPreviewTimeoutSeconds,
			ExportTimeoutSeconds:      defaultExportTimeoutSeconds,
			CaptureTimeoutSeconds:     defaultCaptureTimeoutSeconds,
			EndOfStreamTimeoutSeconds: defaultEndOfStreamTimeoutSeconds,
			ChunkBytes:                defaultChunkBytes,
		},
		Capture: Capture{
			Adapter:            defaultCaptureAdapter,
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			VideoFormat:        defaultVideoFormat,
			VideoInput:         defaultVideoInput,
			AudioFormat:        defaultAudioFormat,
			AudioInput:         defaultAudioInput,
			VideoCodec:         defaultVideoCodec,
			AudioCodec:         defaultAudioCodec,
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
			Prober:             defaultProber,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
