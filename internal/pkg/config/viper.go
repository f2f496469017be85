package config

import (
	"bytes"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads configuration from the given file path and returns a
// Viper-backed Config. Defaults apply for keys the file does not set.
//
// The config file type is inferred by Viper from the filename extension.
func NewViper(pathFile string, defaults map[string]any) (*Viper, error) {
	v := viper.New()
	applyDefaults(v, defaults)

	filename := path.Base(pathFile)
	configName := path.Base(filename[:len(filename)-len(path.Ext(filename))])

	v.AddConfigPath(path.Dir(pathFile))
	v.SetConfigName(configName)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory and returns a Viper-backed
// Config. configType should be a format supported by Viper (e.g. "yaml",
// "json", "toml").
func NewViperFromBytes(configType string, data []byte, defaults map[string]any) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := viper.New()
	applyDefaults(v, defaults)
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

// NewViperDefaults returns a Viper-backed Config holding only defaults. Used
// when no config file is present; every command-line flag still overrides.
func NewViperDefaults(defaults map[string]any) *Viper {
	v := viper.New()
	applyDefaults(v, defaults)
	return &Viper{v: v}
}

func applyDefaults(v *viper.Viper, defaults map[string]any) {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetInt returns the value for key as int.
func (vc *Viper) GetInt(key string) int {
	return vc.v.GetInt(key)
}

// GetSecond returns the value for key as a duration in seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt(key)) * time.Second
}
