package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/battrem/pkg/reminder"
	"github.com/charlie0129/battrem/pkg/utils/ptr"
)

var (
	defaultFileConfig = RawFileConfig{
		MinThreshold:       ptr.To(20),
		MaxThreshold:       ptr.To(80),
		ReminderFrequency:  ptr.To(5),
		AllowNonRootAccess: ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
	// loaded is set once f holds settings, either read or given.
	loaded bool
}

// NewFile loads configPath. A missing or empty file yields the defaults.
func NewFile(configPath string) (*File, error) {
	f := &File{
		c:        &RawFileConfig{},
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

// NewFileFromConfig wraps c, which is copied. A nil c yields the defaults.
func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	raw := RawFileConfig{}
	if c != nil {
		raw = *c
	}

	return &File{
		c:        &raw,
		mu:       &sync.RWMutex{},
		filepath: configPath,
		loaded:   true,
	}
}

// RawFileConfig is the on-disk layout. Unset or zero values read as
// defaults.
type RawFileConfig struct {
	MinThreshold       *int  `json:"minThreshold,omitempty" yaml:"minThreshold,omitempty"`
	MaxThreshold       *int  `json:"maxThreshold,omitempty" yaml:"maxThreshold,omitempty"`
	ReminderFrequency  *int  `json:"reminderFrequency,omitempty" yaml:"reminderFrequency,omitempty"`
	AllowNonRootAccess *bool `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		MinThreshold:       ptr.To(c.MinThreshold()),
		MaxThreshold:       ptr.To(c.MaxThreshold()),
		ReminderFrequency:  ptr.To(c.ReminderFrequency()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
	}, nil
}

func intOrDefault(v, def *int) int {
	if v != nil && *v != 0 {
		return *v
	}
	return *def
}

func (c *RawFileConfig) minThreshold() int {
	return intOrDefault(c.MinThreshold, defaultFileConfig.MinThreshold)
}

func (c *RawFileConfig) maxThreshold() int {
	return intOrDefault(c.MaxThreshold, defaultFileConfig.MaxThreshold)
}

func (c *RawFileConfig) reminderFrequency() int {
	return intOrDefault(c.ReminderFrequency, defaultFileConfig.ReminderFrequency)
}

func (c *RawFileConfig) validate() error {
	err := reminder.Thresholds{MinPercent: c.minThreshold(), MaxPercent: c.maxThreshold()}.Validate()
	if err != nil {
		return err
	}
	return validateFrequency(c.reminderFrequency())
}

func validateFrequency(i int) error {
	if i < reminder.MinFrequency || i > reminder.MaxFrequency {
		return fmt.Errorf("%w: must be between %d and %d minutes, got %d",
			ErrInvalidFrequency, reminder.MinFrequency, reminder.MaxFrequency, i)
	}
	return nil
}

func (f *File) MinThreshold() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.c.minThreshold()
}

func (f *File) MaxThreshold() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.c.maxThreshold()
}

func (f *File) ReminderFrequency() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.c.reminderFrequency()
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.AllowNonRootAccess != nil {
		return *f.c.AllowNonRootAccess
	}
	return *defaultFileConfig.AllowNonRootAccess
}

func (f *File) SetMinThreshold(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := reminder.Thresholds{MinPercent: i, MaxPercent: f.c.maxThreshold()}.Validate()
	if err != nil {
		return err
	}
	f.c.MinThreshold = &i
	return nil
}

func (f *File) SetMaxThreshold(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := reminder.Thresholds{MinPercent: f.c.minThreshold(), MaxPercent: i}.Validate()
	if err != nil {
		return err
	}
	f.c.MaxThreshold = &i
	return nil
}

func (f *File) SetReminderFrequency(i int) error {
	if err := validateFrequency(i); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ReminderFrequency = &i
	return nil
}

func (f *File) SetAllowNonRootAccess(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.AllowNonRootAccess = &b
}

func (f *File) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(f.filepath))
	return ext == ".yaml" || ext == ".yml"
}

// Path returns the file backing f.
func (f *File) Path() string {
	return f.filepath
}

// Load reads the file. If the file holds invalid settings, they are
// rejected and the current ones are kept. An empty file only yields the
// defaults on the first load; later it is taken as a write in progress
// and the current settings stay.
func (f *File) Load() error {
	b, err := os.ReadFile(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, use the empty config.
			// Do not make f.c a nil.
			f.mu.Lock()
			f.c = &RawFileConfig{}
			f.loaded = true
			f.mu.Unlock()
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	empty := len(bytes.TrimSpace(b)) == 0
	f.mu.RLock()
	loaded := f.loaded
	f.mu.RUnlock()
	if empty && loaded {
		logrus.WithField("path", f.filepath).Debug("config file is empty, keeping current settings")
		return nil
	}

	conf := RawFileConfig{}
	if !empty {
		if f.isYAML() {
			err = yaml.Unmarshal(b, &conf)
		} else {
			err = json.Unmarshal(b, &conf)
		}
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
		}
	}

	if err := conf.validate(); err != nil {
		return pkgerrors.Wrapf(err, "rejected config from file %s", f.filepath)
	}

	f.mu.Lock()
	f.c = &conf
	f.loaded = true
	f.mu.Unlock()

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.filepath == "" {
		return pkgerrors.New("config file path is empty")
	}

	var (
		b   []byte
		err error
	)
	if f.isYAML() {
		b, err = yaml.Marshal(f.c)
	} else {
		b, err = json.MarshalIndent(f.c, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	err = os.MkdirAll(filepath.Dir(f.filepath), 0755)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory for %s", f.filepath)
	}

	err = os.WriteFile(f.filepath, b, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"minThreshold":       f.MinThreshold(),
		"maxThreshold":       f.MaxThreshold(),
		"reminderFrequency":  f.ReminderFrequency(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
