package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/williamokano/tddf_uploader/pkg/config"
	"github.com/williamokano/tddf_uploader/pkg/storage"

	// Import backends to register them
	_ "github.com/williamokano/tddf_uploader/pkg/storage/backblaze"
	_ "github.com/williamokano/tddf_uploader/pkg/storage/local"
	_ "github.com/williamokano/tddf_uploader/pkg/storage/mms"
	_ "github.com/williamokano/tddf_uploader/pkg/storage/s3"
	_ "github.com/williamokano/tddf_uploader/pkg/storage/ssh"
)

// ImplicitMMSName names the destination added for a server with no mms destination
const ImplicitMMSName = "mms"

// StorageConfigs converts the enabled destinations into backend configs.
// An mms destination without url or api_key inherits them from the server section.
// When a server url is set and no enabled destination has type mms, one is
// added, so the server always receives the files it is polled about.
func StorageConfigs(cfg *config.Config, version string) []storage.Config {
	var configs []storage.Config
	hasMMS := false

	for _, dest := range cfg.EnabledDestinations() {
		options := make(map[string]interface{}, len(dest.Options)+4)
		for k, v := range dest.Options {
			options[k] = v
		}

		if dest.Type == "mms" {
			hasMMS = true
			serverOptions(options, cfg, version)
		}

		configs = append(configs, storage.Config{
			Name:    dest.Name,
			Type:    dest.Type,
			Enabled: dest.Enabled,
			BaseDir: dest.BaseDir,
			Options: options,
		})
	}

	if !hasMMS && cfg.Server.URL != "" {
		options := make(map[string]interface{}, 4)
		serverOptions(options, cfg, version)
		configs = append(configs, storage.Config{
			Name:    ImplicitMMSName,
			Type:    "mms",
			Enabled: true,
			Options: options,
		})
	}

	return configs
}

// serverOptions fills the mms options the destination left unset
func serverOptions(options map[string]interface{}, cfg *config.Config, version string) {
	setDefault(options, "url", cfg.Server.URL)
	setDefault(options, "api_key", cfg.Server.APIKey)
	setDefault(options, "version", version)
	if _, ok := options["requests_per_second"]; !ok && cfg.Server.RequestsPerSecond > 0 {
		options["requests_per_second"] = cfg.Server.RequestsPerSecond
	}
}

// OpenBackends creates every enabled destination
func OpenBackends(ctx context.Context, cfg *config.Config, version string, logger zerolog.Logger) ([]storage.Backend, error) {
	configs := StorageConfigs(cfg, version)
	if len(configs) == 0 {
		return nil, fmt.Errorf("no enabled storage destinations: %w", storage.ErrInvalidConfig)
	}

	backends, err := storage.NewFactory().CreateAll(ctx, configs)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.Name())
	}
	logger.Info().Int("count", len(backends)).Strs("destinations", names).Msg("initialized storage backends")

	return backends, nil
}

func setDefault(options map[string]interface{}, key, value string) {
	if value == "" {
		return
	}
	if v, ok := options[key].(string); ok && v != "" {
		return
	}
	options[key] = value
}
