package config

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultHooks decode durations, comma-separated lists and RFC3339 timestamps.
var DefaultHooks = []mapstructure.DecodeHookFunc{
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
	mapstructure.StringToTimeHookFunc(time.RFC3339),
}

// DecoderOptions returns viper decoder options applying DefaultHooks followed by hooks.
func DecoderOptions(hooks ...mapstructure.DecodeHookFunc) []viper.DecoderConfigOption {
	all := make([]mapstructure.DecodeHookFunc, 0, len(DefaultHooks)+len(hooks))
	all = append(all, DefaultHooks...)
	all = append(all, hooks...)
	return []viper.DecoderConfigOption{
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(all...)),
	}
}

// StringParserHookFunc returns a hook decoding strings into values of type T using parse.
func StringParserHookFunc[T any](parse func(string) (T, error)) mapstructure.DecodeHookFuncType {
	var zero T
	target := reflect.TypeOf(zero)
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != target {
			return data, nil
		}
		return parse(data.(string))
	}
}
