// Package config loads YAML or TOML configuration files and applies
// environment variable overrides declared with `env` struct tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file into out. Files ending in .toml are
// decoded as TOML, everything else as YAML. ${VAR} references in the file
// are expanded before decoding, then `env` tags override individual fields.
func Load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(expanded, out)
	default:
		err = yaml.Unmarshal(expanded, out)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return ApplyEnv(out)
}

// LoadOrDefault loads path if it exists. A missing file leaves out untouched
// apart from environment overrides.
func LoadOrDefault(path string, out any) error {
	if path == "" {
		return ApplyEnv(out)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ApplyEnv(out)
	}
	return Load(path, out)
}

// ApplyEnv sets struct fields from the environment variables named by their
// `env` tags, recursing into nested structs.
func ApplyEnv(v any) error {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)
		if !field.IsExported() {
			continue
		}

		envTag := field.Tag.Get("env")
		if fieldVal.Kind() == reflect.Struct && envTag == "" {
			if err := ApplyEnv(fieldVal.Addr().Interface()); err != nil {
				return err
			}
			continue
		}
		if envTag == "" {
			continue
		}

		envVal, ok := os.LookupEnv(envTag)
		if !ok || !fieldVal.CanSet() {
			continue
		}
		if err := setField(fieldVal, envVal); err != nil {
			return fmt.Errorf("env %s: %w", envTag, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(v reflect.Value, raw string) error {
	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		v.SetBool(strings.EqualFold(raw, "true") || raw == "1")
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", v.Type())
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		v.Set(reflect.ValueOf(parts).Convert(v.Type()))
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}
