package config

import (
	"encoding/json"
	"io"
	"os"
	"path"
	"reflect"

	"global-store/lib/utils"
	"global-store/modules/aggregate"

	"github.com/chebyrash/promise"
	"github.com/go-playground/validator/v10"
)

type Config[T any] struct {
	defaultValue T
	dataDir      string

	loaded bool
	value  T
}

const DATA_DIR = "data"
const CONFIG_DIR = DATA_DIR + "/config"

var validate = validator.New(validator.WithRequiredStructEnabled())

var _ aggregate.Plugin = &Config[struct{}]{}

// New creates a config persisted as <dataDir>/<TypeName>.json. dataDir
// defaults to "data/config" when not provided.
func New[T any](defaultValue T, dataDir ...string) *Config[T] {
	dir := CONFIG_DIR
	if len(dataDir) >= 1 && dataDir[0] != "" {
		dir = dataDir[0]
	}
	return &Config[T]{defaultValue: defaultValue, dataDir: dir}
}

func (c *Config[T]) filePath() string {
	name := reflect.TypeFor[T]().Name()
	return path.Join(c.dataDir, name+".json")
}

// Init implements aggregate.Plugin. The file is created from the default
// value on first use; whatever ends up loaded is validated against the
// type's `validate` struct tags.
func (c *Config[T]) Init() error {
	f, err := os.Open(c.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			err = c.Update(func(t *T) {
				*t = c.defaultValue
			})
			if err != nil {
				return err
			}
		} else {
			return err
		}
	} else {
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		err = json.Unmarshal(b, &c.value)
		if err != nil {
			return err
		}
	}
	if err := c.validateValue(); err != nil {
		return err
	}
	c.loaded = true
	return nil
}

// Start implements aggregate.Plugin.
func (c *Config[T]) Start() *promise.Promise[any] {
	return utils.PromiseResolve[any](nil)
}

// Stop implements aggregate.Plugin.
func (c *Config[T]) Stop() error {
	return nil
}

func (c *Config[T]) Get() T {
	return c.value
}

func (c *Config[T]) Update(updater func(*T)) error {
	temp := c.value
	updater(&temp)
	b, err := json.MarshalIndent(temp, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(path.Dir(c.filePath()), 0755)
	if err != nil {
		return err
	}
	err = os.WriteFile(c.filePath(), b, 0644)
	if err != nil {
		return err
	}
	c.value = temp
	return nil
}

func (c *Config[T]) validateValue() error {
	if reflect.TypeFor[T]().Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(c.value)
}
