package config

const (
	defaultConfigPath           = "~/.config/gallery/config.toml"
	defaultDataDir              = "~/.local/share/gallery"
	defaultLogDir               = "~/.local/share/gallery/logs"
	defaultServerBind           = "127.0.0.1:3000"
	defaultRoutePrefix          = "/api"
	defaultRateLimitPerMinute   = 60
	defaultGinMode              = "release"
	defaultBackendURL           = "http://127.0.0.1:8000"
	defaultSimilarPath          = "/similar-to"
	defaultBackendTimeout       = 30
	defaultUploadEndpoint       = "http://127.0.0.1:3000/api"
	defaultBatchSize            = 3
	defaultBatchDelayMS         = 5000
	defaultCompletionGraceMS    = 2000
	defaultUploadRequestTimeout = 120
	defaultPreviewWidth         = 320
	defaultGalleryTTLSeconds    = 300
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogFile              = "gallery.log"
	defaultLogMaxSizeMB         = 20
	defaultLogMaxBackups        = 5
	defaultLogMaxAgeDays        = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			PreviewDir: defaultPreviewDir(),
		},
		Server: Server{
			Bind:               defaultServerBind,
			RoutePrefix:        defaultRoutePrefix,
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: defaultRateLimitPerMinute,
			GinMode:            defaultGinMode,
		},
		Backend: Backend{
			SimilarPath:    defaultSimilarPath,
			TimeoutSeconds: defaultBackendTimeout,
		},
		Upload: Upload{
			BatchSize:             defaultBatchSize,
			BatchDelayMS:          defaultBatchDelayMS,
			CompletionGraceMS:     defaultCompletionGraceMS,
			RequestTimeoutSeconds: defaultUploadRequestTimeout,
			PreviewWidth:          defaultPreviewWidth,
		},
		Cache: Cache{
			GalleryTTLSecond: defaultGalleryTTLSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Upload:         true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			File:       defaultLogFile,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
