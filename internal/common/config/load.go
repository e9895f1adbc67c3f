package config

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Environment variables with this prefix override configured values, e.g., JOBCLASS_SERVER_DEFAULTQUEUE.
const EnvPrefix = "JOBCLASS"

// Limit attribute names contain dots, so nested keys are delimited otherwise.
const keyDelimiter = "::"

// LoadConfig reads config.yaml from defaultPath, merges in each of overrideConfigs in order and decodes the result
// into config using DefaultHooks and hooks. A missing default file is not an error; missing override files are.
// Keys present in some file may be overridden from the environment.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string, hooks ...mapstructure.DecodeHookFunc) error {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrapf(err, "reading default config from %s", defaultPath)
		}
		log.Infof("No default config found in %s", defaultPath)
	}
	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file %s", overrideConfig)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}
	if err := v.Unmarshal(config, DecoderOptions(hooks...)...); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
